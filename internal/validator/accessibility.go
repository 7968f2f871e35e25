package validator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rob-kingsbury/ui-explorer/internal/browser"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Accessibility checks the page markup against a small set of high-signal
// accessibility rules: missing alt text, unlabeled fields, nameless buttons,
// missing document language, duplicate ids, and skipped heading levels.
//
// Design decision: We parse the captured HTML with goquery rather than
// querying the live page because:
//  1. The snapshot is the exact document the fingerprint was taken from
//  2. Selector queries over a static document cannot race page mutations
//  3. The same check runs identically under both browser drivers
type Accessibility struct{}

// NewAccessibility creates the markup accessibility validator.
func NewAccessibility() *Accessibility {
	return &Accessibility{}
}

// Name implements Validator.
func (a *Accessibility) Name() string { return "accessibility" }

// Validate implements Validator.
func (a *Accessibility) Validate(_ context.Context, _ browser.Session, obs *model.Observation, _ string) (*Result, error) {
	start := time.Now()
	res := &Result{Validator: a.Name()}

	if obs.HTML == "" {
		res.Duration = time.Since(start)
		return res, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(obs.HTML))
	if err != nil {
		res.Duration = time.Since(start)
		return res, fmt.Errorf("parse page markup: %w", err)
	}

	res.Issues = append(res.Issues, a.checkImgAlt(doc)...)
	res.Issues = append(res.Issues, a.checkFormLabels(doc)...)
	res.Issues = append(res.Issues, a.checkButtonNames(doc)...)
	res.Issues = append(res.Issues, a.checkHTMLLang(doc)...)
	res.Issues = append(res.Issues, a.checkDuplicateIDs(obs)...)
	res.Issues = append(res.Issues, a.checkHeadingOrder(obs)...)

	res.Duration = time.Since(start)
	return res, nil
}

// checkImgAlt flags images with no alt attribute at all. alt="" is a valid
// way to mark a decorative image and is not flagged.
func (a *Accessibility) checkImgAlt(doc *goquery.Document) []model.Issue {
	var locators []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if _, ok := sel.Attr("alt"); !ok {
			locators = append(locators, describeNode(sel, "img"))
		}
	})
	if len(locators) == 0 {
		return nil
	}
	issue := model.NewIssue("img-alt",
		fmt.Sprintf("%d image(s) have no alt attribute", len(locators)))
	issue.Locators = locators
	return []model.Issue{issue}
}

// checkFormLabels flags visible form fields with no label association of any
// kind: no label[for], no wrapping label, no aria-label or aria-labelledby,
// and no title.
func (a *Accessibility) checkFormLabels(doc *goquery.Document) []model.Issue {
	labelFor := make(map[string]bool)
	doc.Find("label[for]").Each(func(_ int, sel *goquery.Selection) {
		if id, ok := sel.Attr("for"); ok && id != "" {
			labelFor[id] = true
		}
	})

	var locators []string
	doc.Find("input, select, textarea").Each(func(_ int, sel *goquery.Selection) {
		t, _ := sel.Attr("type")
		switch strings.ToLower(t) {
		case "hidden", "submit", "button", "image", "reset":
			return
		}
		if id, ok := sel.Attr("id"); ok && labelFor[id] {
			return
		}
		if hasNonEmptyAttr(sel, "aria-label") || hasNonEmptyAttr(sel, "aria-labelledby") || hasNonEmptyAttr(sel, "title") {
			return
		}
		if sel.ParentsFiltered("label").Length() > 0 {
			return
		}
		locators = append(locators, describeNode(sel, goquery.NodeName(sel)))
	})
	if len(locators) == 0 {
		return nil
	}
	issue := model.NewIssue("form-label",
		fmt.Sprintf("%d form field(s) have no associated label", len(locators)))
	issue.Locators = locators
	return []model.Issue{issue}
}

// checkButtonNames flags buttons with no accessible name: no text content,
// no aria-label, no value, no title.
func (a *Accessibility) checkButtonNames(doc *goquery.Document) []model.Issue {
	var locators []string
	check := func(sel *goquery.Selection, tag string) {
		if strings.TrimSpace(sel.Text()) != "" {
			return
		}
		if hasNonEmptyAttr(sel, "aria-label") || hasNonEmptyAttr(sel, "aria-labelledby") ||
			hasNonEmptyAttr(sel, "value") || hasNonEmptyAttr(sel, "title") {
			return
		}
		// An image child with alt text names the button.
		if sel.Find("img[alt]").Length() > 0 {
			return
		}
		locators = append(locators, describeNode(sel, tag))
	}

	doc.Find("button, [role=button]").Each(func(_ int, sel *goquery.Selection) {
		check(sel, goquery.NodeName(sel))
	})
	doc.Find("input[type=submit], input[type=button]").Each(func(_ int, sel *goquery.Selection) {
		check(sel, "input")
	})
	if len(locators) == 0 {
		return nil
	}
	issue := model.NewIssue("button-name",
		fmt.Sprintf("%d button(s) have no accessible name", len(locators)))
	issue.Locators = locators
	return []model.Issue{issue}
}

// checkHTMLLang flags a document whose html element has no lang attribute.
func (a *Accessibility) checkHTMLLang(doc *goquery.Document) []model.Issue {
	if hasNonEmptyAttr(doc.Find("html").First(), "lang") {
		return nil
	}
	return []model.Issue{model.NewIssue("html-lang", "document has no lang attribute")}
}

// checkDuplicateIDs reports id values that appear more than once, which were
// already counted during observation.
func (a *Accessibility) checkDuplicateIDs(obs *model.Observation) []model.Issue {
	if len(obs.DuplicateIDs) == 0 {
		return nil
	}
	issue := model.NewIssue("duplicate-id",
		fmt.Sprintf("%d id value(s) appear more than once: %s",
			len(obs.DuplicateIDs), strings.Join(obs.DuplicateIDs, ", ")))
	return []model.Issue{issue}
}

// checkHeadingOrder flags heading levels that skip, e.g. an h3 directly
// after an h1.
func (a *Accessibility) checkHeadingOrder(obs *model.Observation) []model.Issue {
	var issues []model.Issue
	prev := 0
	for _, level := range obs.Headings {
		if prev > 0 && level > prev+1 {
			issues = append(issues, model.NewIssue("heading-order",
				fmt.Sprintf("heading level skips from h%d to h%d", prev, level)))
		}
		prev = level
	}
	return issues
}

// hasNonEmptyAttr reports whether the attribute exists with a non-blank value.
func hasNonEmptyAttr(sel *goquery.Selection, name string) bool {
	v, ok := sel.Attr(name)
	return ok && strings.TrimSpace(v) != ""
}

// describeNode builds a short locator for reporting: the element's id or
// name when present, its tag otherwise.
func describeNode(sel *goquery.Selection, tag string) string {
	if id, ok := sel.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if name, ok := sel.Attr("name"); ok && name != "" {
		return fmt.Sprintf("%s[name=%q]", tag, name)
	}
	return tag
}
