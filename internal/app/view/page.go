package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"

	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"

	"golang.org/x/net/html"
)

//go:embed templates/index.html
var templates embed.FS

// RequiredElementIDs is the DOM contract of the dashboard page.
var RequiredElementIDs = []string{ //nolint:gochecknoglobals // static table
	"welcomeScreen", "mainInterface",
	"connectWallet", "disconnectWallet", "walletStatus", "walletAddress", "walletTypeDisplay",
	"userBalance", "usdValue", "pendingRewards",
	"currentAPR", "referrerRate", "referredRate",
	"amount", "deposit", "withdraw", "maxAmount", "claimRewards",
	"referralCodeInput", "referralCodeDisplay", "fullReferralMessage",
	"notification", "notificationMessage", "loadingOverlay",
}

type pageData struct {
	ViewModel
	ToastMillis int64
}

// Page is the dashboard HTML document.
type Page struct {
	tmpl *template.Template
}

// NewPage parses the embedded template and checks that a rendering satisfies the DOM contract.
func NewPage() (*Page, error) {
	tmpl, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	p := &Page{tmpl: tmpl}

	var buf bytes.Buffer
	if err := p.Render(&buf, NewPresenter().Render(entity.ZeroAppState())); err != nil {
		return nil, err
	}
	if err := ValidatePage(&buf); err != nil {
		return nil, err
	}
	return p, nil
}

// Render writes the page for vm.
func (p *Page) Render(w io.Writer, vm ViewModel) error {
	return p.tmpl.Execute(w, pageData{ViewModel: vm, ToastMillis: config.ToastDuration.Milliseconds()})
}

// ValidatePage fails when any element of RequiredElementIDs is absent from the document.
func ValidatePage(r io.Reader) error {
	doc, err := html.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	found := make(map[string]struct{})
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "id" {
					found[attr.Val] = struct{}{}
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	var missing []string
	for _, id := range RequiredElementIDs {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("page is missing required elements: %v", missing)
	}
	return nil
}
