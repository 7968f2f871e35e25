package browser

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// HTML element name constants for form field detection.
const (
	htmlElementInput    = "input"
	htmlElementSelect   = "select"
	htmlElementTextarea = "textarea"
)

// staticElement is the parser's record of one interactive element, kept so
// the static session can act on a selector without re-walking the DOM.
type staticElement struct {
	kind      model.ElementKind
	tag       string
	text      string
	name      string
	id        string
	inputType string
	// href is the resolved link target for anchors.
	href string
	// value is the element's default value attribute.
	value string
	// formSelector is the selector of the enclosing form, if any.
	formSelector string
	options      []string
	disabled     bool
}

// staticField is one submittable field of a parsed form.
type staticField struct {
	selector  string
	name      string
	inputType string
	value     string
	required  bool
	options   []string
}

// staticForm is a parsed form with enough detail to synthesize a submission.
type staticForm struct {
	selector string
	method   string
	action   string
	fields   []staticField
}

// parsedPage is one fully parsed document: the observation handed to the
// explorer plus the element and form indexes the static session acts through.
type parsedPage struct {
	obs   *model.Observation
	index map[string]staticElement
	forms map[string]*staticForm
}

// pageParser extracts a page's interactive surface from server-rendered HTML.
//
// Design decision: We use golang.org/x/net/html rather than regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure for selector generation
//  3. More maintainable than complex regex patterns
type pageParser struct {
	base *url.URL

	// nameCounts is filled in a first pass so tag[name="..."] selectors are
	// only emitted when the name is unique on the page.
	nameCounts map[string]int
	idCounts   map[string]int
}

// parsePage parses one document into an observation and its action indexes.
// The raw HTML is retained (truncated) for markup validators.
func parsePage(base *url.URL, r io.Reader, viewportWidth int) (*parsedPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	p := &pageParser{
		base:       base,
		nameCounts: make(map[string]int),
		idCounts:   make(map[string]int),
	}
	p.countAttrs(doc)

	page := &parsedPage{
		obs: &model.Observation{
			URL:           stripURLFragment(base.String()),
			ViewportWidth: viewportWidth,
		},
		index: make(map[string]staticElement),
		forms: make(map[string]*staticForm),
	}
	p.walk(doc, "", page)

	for id, n := range p.idCounts {
		if n > 1 {
			page.obs.DuplicateIDs = append(page.obs.DuplicateIDs, id)
		}
	}

	var buf strings.Builder
	if err := html.Render(&buf, doc); err == nil {
		page.obs.HTML = model.TruncateHTML(buf.String())
	}
	return page, nil
}

// countAttrs tallies id and name attributes ahead of selector generation.
func (p *pageParser) countAttrs(n *html.Node) {
	if n.Type == html.ElementNode {
		if id := getAttr(n, "id"); id != "" {
			p.idCounts[id]++
		}
		if name := getAttr(n, "name"); name != "" {
			p.nameCounts[n.Data+"\x00"+name]++
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.countAttrs(c)
	}
}

// walk visits every element, collecting interactive elements, links, forms,
// and headings. formSelector carries the enclosing form down the tree.
func (p *pageParser) walk(n *html.Node, formSelector string, page *parsedPage) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				page.obs.Title = strings.TrimSpace(n.FirstChild.Data)
			}

		case "html":
			page.obs.Lang = getAttr(n, "lang")

		case "a":
			if href := getAttr(n, "href"); href != "" {
				p.recordLink(n, href, page)
			}

		case "form":
			formSelector = p.recordForm(n, page)

		case "button":
			p.recordElement(n, model.ElementButton, formSelector, page)

		case htmlElementInput:
			p.recordInput(n, formSelector, page)

		case htmlElementSelect:
			p.recordElement(n, model.ElementSelect, formSelector, page)

		case htmlElementTextarea:
			p.recordElement(n, model.ElementInput, formSelector, page)

		case "h1", "h2", "h3", "h4", "h5", "h6":
			page.obs.Headings = append(page.obs.Headings, int(n.Data[1]-'0'))

		default:
			if getAttr(n, "role") == "button" {
				p.recordElement(n, model.ElementButton, formSelector, page)
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, formSelector, page)
	}
}

// recordLink registers an anchor both as a clickable element and as a link
// for the broken-link checker.
func (p *pageParser) recordLink(n *html.Node, href string, page *parsedPage) {
	resolved := p.resolveURL(href)
	if resolved == "" {
		return
	}
	sel := p.selectorFor(n)
	text := model.TruncateText(textOf(n))

	page.obs.Links = append(page.obs.Links, model.Link{
		Href:     resolved,
		Text:     text,
		Internal: sameHost(p.base, resolved),
	})
	page.obs.Elements = append(page.obs.Elements, model.PageElement{
		Kind:     model.ElementLink,
		Selector: sel,
		Tag:      "a",
		Text:     text,
		ID:       getAttr(n, "id"),
		Href:     resolved,
		Visible:  true,
	})
	page.index[sel] = staticElement{
		kind: model.ElementLink,
		tag:  "a",
		text: text,
		href: resolved,
	}
}

// recordForm registers a form and its fields, returning its selector so
// descendants can reference it.
func (p *pageParser) recordForm(n *html.Node, page *parsedPage) string {
	sel := p.selectorFor(n)
	method := strings.ToLower(getAttr(n, "method"))
	if method == "" {
		method = "get"
	}

	form := &staticForm{
		selector: sel,
		method:   method,
		action:   p.resolveURL(getAttr(n, "action")),
	}
	if form.action == "" {
		form.action = p.base.String()
	}
	p.collectFields(n, form)
	page.forms[sel] = form

	mf := model.Form{
		Selector: sel,
		Method:   method,
		ActionTo: getAttr(n, "action"),
	}
	for _, f := range form.fields {
		mf.Fields = append(mf.Fields, model.FormField{
			Selector:  f.selector,
			Name:      f.name,
			InputType: f.inputType,
			Required:  f.required,
		})
	}
	page.obs.Forms = append(page.obs.Forms, mf)
	return sel
}

// collectFields recursively gathers a form's submittable fields.
func (p *pageParser) collectFields(n *html.Node, form *staticForm) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case htmlElementInput, htmlElementSelect, htmlElementTextarea:
			field := staticField{
				selector:  p.selectorFor(n),
				name:      getAttr(n, "name"),
				inputType: getAttr(n, "type"),
				value:     getAttr(n, "value"),
				required:  hasAttr(n, "required"),
			}
			if field.inputType == "" {
				switch n.Data {
				case htmlElementTextarea:
					field.inputType = htmlElementTextarea
				case htmlElementSelect:
					field.inputType = htmlElementSelect
					field.options = optionValues(n)
				default:
					field.inputType = "text"
				}
			}
			form.fields = append(form.fields, field)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.collectFields(c, form)
	}
}

// recordInput classifies an input element by its type attribute.
func (p *pageParser) recordInput(n *html.Node, formSelector string, page *parsedPage) {
	switch strings.ToLower(getAttr(n, "type")) {
	case "submit", "button", "image":
		p.recordElement(n, model.ElementButton, formSelector, page)
	case "checkbox", "radio":
		p.recordElement(n, model.ElementCheckbox, formSelector, page)
	case "hidden":
		// Hidden inputs are submitted with their form but are not actions.
	default:
		p.recordElement(n, model.ElementInput, formSelector, page)
	}
}

// recordElement registers one interactive element in both the observation
// and the session's action index.
func (p *pageParser) recordElement(n *html.Node, kind model.ElementKind, formSelector string, page *parsedPage) {
	sel := p.selectorFor(n)
	text := model.TruncateText(textOf(n))
	if text == "" {
		text = getAttr(n, "value")
	}
	inputType := strings.ToLower(getAttr(n, "type"))

	el := model.PageElement{
		Kind:      kind,
		Selector:  sel,
		Tag:       n.Data,
		Text:      text,
		Name:      getAttr(n, "name"),
		ID:        getAttr(n, "id"),
		InputType: inputType,
		AriaLabel: getAttr(n, "aria-label"),
		Disabled:  hasAttr(n, "disabled"),
		Visible:   true,
	}
	se := staticElement{
		kind:         kind,
		tag:          n.Data,
		text:         text,
		name:         el.Name,
		id:           el.ID,
		inputType:    inputType,
		value:        getAttr(n, "value"),
		formSelector: formSelector,
		disabled:     el.Disabled,
	}
	if kind == model.ElementSelect {
		se.options = optionValues(n)
		el.Options = se.options
	}

	page.obs.Elements = append(page.obs.Elements, el)
	page.index[sel] = se
}

// selectorFor builds a deterministic CSS selector for the node: its id when
// present, a unique tag[name="..."] otherwise, and a positional path as the
// fallback. Mirrors how selectors are generated in the live browser so the
// two drivers fingerprint alike.
func (p *pageParser) selectorFor(n *html.Node) string {
	if id := getAttr(n, "id"); id != "" {
		return "#" + id
	}
	if name := getAttr(n, "name"); name != "" && p.nameCounts[n.Data+"\x00"+name] == 1 {
		return fmt.Sprintf("%s[name=%q]", n.Data, name)
	}

	var parts []string
	for node := n; node != nil && node.Type == html.ElementNode && node.Data != "html"; node = node.Parent {
		if id := getAttr(node, "id"); id != "" {
			parts = append([]string{"#" + id}, parts...)
			break
		}
		idx := 1
		for sib := node.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == node.Data {
				idx++
			}
		}
		parts = append([]string{fmt.Sprintf("%s:nth-of-type(%d)", node.Data, idx)}, parts...)
	}
	return strings.Join(parts, " > ")
}

// resolveURL resolves a relative URL against the page URL, dropping
// non-navigable schemes.
func (p *pageParser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := p.base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// sameHost reports whether the URL stays on the base URL's host.
func sameHost(base *url.URL, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == base.Host
}

// textOf collects the node's visible text content.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			b.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// optionValues returns the value of each option under a select element.
func optionValues(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "option" {
			if v := getAttr(node, "value"); v != "" {
				out = append(out, v)
			} else {
				out = append(out, textOf(node))
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// getAttr returns the value of the named attribute, or "".
func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasAttr reports whether the named attribute is present at all.
func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
