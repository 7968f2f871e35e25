// Package validator inspects observed pages for defects that need no
// declared expectations: accessibility violations, broken links, console
// and network errors, and layout problems.
//
// Validators are advisory. A validator that fails mid-check contributes the
// issues it found so far and the failure is logged; exploration never stops
// because a check could not complete.
package validator
