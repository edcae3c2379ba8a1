package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// The portal's scripts (Moodle YUI and the cabinet's schedule picker)
// listen for pointer events, not just high-level click semantics, so a
// plain element.click() is silently ignored by half the controls. The
// dispatch sequence below is what they actually expect.
const dispatchClickJS = `
(() => {
	const el = %s;
	if (!el) { return false; }
	el.scrollIntoView({block:'center', inline:'center'});
	try { el.click(); } catch (e) {}
	const down  = new PointerEvent('pointerdown', {bubbles:true});
	const up    = new PointerEvent('pointerup',   {bubbles:true});
	const click = new MouseEvent  ('click',       {bubbles:true});
	el.dispatchEvent(down);
	el.dispatchEvent(up);
	el.dispatchEvent(click);
	return true;
})()
`

const selectorLookupJS = `document.querySelector(%s)`

const xpathLookupJS = `document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`

// DispatchClick fires the synthetic pointerdown/pointerup/click sequence
// on the first element matching the css selector.
func (s *Session) DispatchClick(ctx context.Context, selector string) error {
	lookup := fmt.Sprintf(selectorLookupJS, strconv.Quote(selector))
	return s.dispatchClick(ctx, lookup, selector)
}

// DispatchClickXPath is DispatchClick for targets that can only be
// addressed by their visible text.
func (s *Session) DispatchClickXPath(ctx context.Context, xpath string) error {
	lookup := fmt.Sprintf(xpathLookupJS, strconv.Quote(xpath))
	return s.dispatchClick(ctx, lookup, xpath)
}

func (s *Session) dispatchClick(ctx context.Context, lookup, target string) error {
	var found bool
	err := s.Evaluate(ctx, fmt.Sprintf(dispatchClickJS, lookup), &found)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no element matched %q", target)
	}
	// give the page's own handlers a beat to react
	time.Sleep(time.Millisecond * 150)
	return nil
}
