package checkout

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Challenge provider script hosts. A page referencing any of them is gated.
var challengeHosts = []string{
	"https://www.recaptcha.net/recaptcha/",
	"https://www.google.com/recaptcha/",
	"https://www.hcaptcha.com/",
	"https://hcaptcha.com/",
}

// HasChallenge reports whether the page embeds a known interactive challenge
// script or frame.
func HasChallenge(body []byte) bool {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return false
	}
	found := false
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.DataAtom {
		case atom.Script, atom.Iframe:
			src := attr(n, "src")
			for _, host := range challengeHosts {
				if strings.HasPrefix(src, host) {
					found = true
					return false
				}
			}
		}
		return true
	})
	return found
}

// ExtractToken returns the authenticity token embedded in a checkpoint or
// challenge page, or "".
func ExtractToken(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	token := ""
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Input &&
			attr(n, "name") == "authenticity_token" {
			token = attr(n, "value")
			return false
		}
		return true
	})
	return token
}

// ExtractChallenge returns the challenge sitekey and optional "s" data
// parameter from a page. It checks data-sitekey attributes first, then falls
// back to the challenge frame's URL parameters.
func ExtractChallenge(body []byte) (sitekey, data string) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if k := attr(n, "data-sitekey"); k != "" {
			sitekey, data = k, attr(n, "data-s")
			return false
		}
		if n.DataAtom == atom.Iframe {
			if src := attr(n, "src"); src != "" {
				if u, err := url.Parse(src); err == nil {
					if k := u.Query().Get("k"); k != "" {
						sitekey, data = k, u.Query().Get("s")
						return false
					}
				}
			}
		}
		return true
	})
	return sitekey, data
}

// walk visits nodes depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
