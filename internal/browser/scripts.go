// internal/browser/scripts.go
package browser

import (
	"encoding/json"
	"fmt"
)

// handleAttr tags located elements so later calls can address them exactly.
// An element keeps the first handle it is given.
const handleAttr = "data-uniauto-handle"

// jsPrelude defines the helpers shared by every locator script. isVisible is
// the same visibility test used for interaction: non-zero box, displayed,
// not hidden, not transparent, and not disabled.
const jsPrelude = `
const isVisible = (el) => {
	if (!el || !el.getBoundingClientRect) return false;
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	return rect.width > 0 && rect.height > 0 &&
		style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0' &&
		!el.disabled;
};
const norm = (s) => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
const tag = (el, attr, id) => {
	const existing = el.getAttribute(attr);
	if (existing) return existing;
	el.setAttribute(attr, id);
	return id;
};
`

// jsonEncode safely encodes a value for JS injection.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

// wrap builds an IIFE that runs body with the prelude and the given arguments
// bound to (arg, attr, id). It returns the handle id, null, or {error: "..."}.
func wrap(body string, arg interface{}, id string) string {
	return fmt.Sprintf(`(function(arg, attr, id) {
%s
%s
})(%s, %s, %s)`, jsPrelude, body, jsonEncode(arg), jsonEncode(handleAttr), jsonEncode(id))
}

// queryScript tags the first visible match of a CSS selector group. Invalid
// selectors are reported as errors instead of throwing.
func queryScript(selector, id string) string {
	return wrap(`
	let nodes;
	try { nodes = document.querySelectorAll(arg); } catch (e) { return {error: 'invalid selector: ' + e.message}; }
	for (const el of nodes) {
		if (isVisible(el)) return tag(el, attr, id);
	}
	return null;`, selector, id)
}

// labelScript resolves a label by partial, case-insensitive text and tags the
// control it labels. aria-label on form controls counts as a label too.
func labelScript(text, id string) string {
	return wrap(`
	const want = norm(arg);
	if (!want) return null;
	for (const label of document.querySelectorAll('label')) {
		if (!norm(label.textContent).includes(want)) continue;
		let control = label.control;
		if (!control && label.htmlFor) control = document.getElementById(label.htmlFor);
		if (!control) control = label.querySelector('input, select, textarea');
		if (isVisible(control)) return tag(control, attr, id);
	}
	for (const el of document.querySelectorAll('input[aria-label], select[aria-label], textarea[aria-label]')) {
		if (norm(el.getAttribute('aria-label')).includes(want) && isVisible(el)) return tag(el, attr, id);
	}
	for (const el of document.querySelectorAll('[aria-labelledby]')) {
		const ids = (el.getAttribute('aria-labelledby') || '').split(/\s+/);
		const text = ids.map((i) => { const n = document.getElementById(i); return n ? n.textContent : ''; }).join(' ');
		if (norm(text).includes(want) && isVisible(el)) return tag(el, attr, id);
	}
	return null;`, text, id)
}

// placeholderScript tags the first visible input or textarea whose placeholder
// contains the text, case-insensitively.
func placeholderScript(text, id string) string {
	return wrap(`
	const want = norm(arg);
	if (!want) return null;
	for (const el of document.querySelectorAll('input[placeholder], textarea[placeholder]')) {
		if (norm(el.getAttribute('placeholder')).includes(want) && isVisible(el)) return tag(el, attr, id);
	}
	return null;`, text, id)
}

// roleSelectors maps the ARIA roles the workflow searches for to the elements
// that carry them implicitly.
var roleSelectors = map[string]string{
	"button":   `button, input[type="button"], input[type="submit"], input[type="reset"], [role="button"]`,
	"link":     `a[href], [role="link"]`,
	"checkbox": `input[type="checkbox"], [role="checkbox"]`,
	"textbox":  `input:not([type]), input[type="text"], input[type="email"], textarea, [role="textbox"]`,
}

// roleScript tags the first visible element with the role whose accessible name
// contains the hint.
func roleScript(role, name, id string) string {
	sel, ok := roleSelectors[role]
	if !ok {
		sel = fmt.Sprintf(`[role=%s]`, jsonEncode(role))
	}
	return wrap(`
	const want = norm(arg.name);
	const accessibleName = (el) => norm(
		el.getAttribute('aria-label') || el.textContent || el.value || el.getAttribute('title') || '');
	for (const el of document.querySelectorAll(arg.selector)) {
		if (!isVisible(el)) continue;
		if (want === '' || accessibleName(el).includes(want)) return tag(el, attr, id);
	}
	return null;`, map[string]string{"selector": sel, "name": name}, id)
}

// fillScript assigns a value through the native setter so framework-managed
// inputs observe the change, then fires input and change events.
func fillScript(selector, value string) string {
	return fmt.Sprintf(`(function(sel, value) {
	const el = document.querySelector(sel);
	if (!el) return 'missing';
	if (el.disabled || el.readOnly) return 'readonly';
	if (el.isContentEditable) {
		el.focus();
		el.textContent = value;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		return 'ok';
	}
	let proto;
	if (el instanceof HTMLInputElement) proto = HTMLInputElement.prototype;
	else if (el instanceof HTMLTextAreaElement) proto = HTMLTextAreaElement.prototype;
	else return 'not-input';
	const skip = ['checkbox', 'radio', 'file', 'submit', 'button', 'image', 'reset', 'hidden'];
	if (el instanceof HTMLInputElement && skip.includes((el.type || '').toLowerCase())) return 'not-input';
	el.focus();
	Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, value);
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	el.blur();
	return el.value === value ? 'ok' : 'rejected';
})(%s, %s)`, jsonEncode(selector), jsonEncode(value))
}

// selectScript chooses an option by exact value, then by exact visible text,
// then by partial visible text, all case-insensitive except the value match.
func selectScript(selector, value string) string {
	return fmt.Sprintf(`(function(sel, value) {
	const el = document.querySelector(sel);
	if (!el) return 'missing';
	if (!(el instanceof HTMLSelectElement)) return 'not-select';
	if (el.disabled) return 'readonly';
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const want = norm(value);
	const opts = Array.from(el.options);
	const match = opts.find((o) => o.value === value) ||
		opts.find((o) => norm(o.textContent) === want) ||
		(want ? opts.find((o) => norm(o.textContent).includes(want)) : undefined);
	if (!match) return 'no-option';
	el.value = match.value;
	match.selected = true;
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return 'ok';
})(%s, %s)`, jsonEncode(selector), jsonEncode(value))
}

const readContentScript = `(document.body ? document.body.innerText : document.documentElement.innerText) || ''`
