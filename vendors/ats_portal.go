// vendors/ats_portal.go
package vendors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"github.com/bctw/collector/models"
)

// Labels of the portal controls that start each export.
const (
	ATSTransmissionsLabel = "download all transmissions"
	ATSDataPointsLabel    = "download all data points"
)

// PortalOptions locates the ATS login form fields and download controls.
// The ids are CSS selectors such as "#ctl01".
type PortalOptions struct {
	LoginFormID     string
	UsernameFieldID string
	PasswordFieldID string
	DownloadDir     string
	SettleDelay     time.Duration
}

// newPortalClient returns a client that keeps the portal session cookies.
func newPortalClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &http.Client{Jar: jar, Timeout: timeout}, nil
}

// portalLogin submits the login form and returns the page that follows.
// Hidden inputs on the form are sent back unchanged.
func portalLogin(ctx context.Context, o HTTPOptions, client *http.Client, p PortalOptions, base, username, password string) (*goquery.Document, error) {
	loginURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ATS url %q: %w", base, err)
	}
	doc, err := getDocument(ctx, o, client, loginURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load ATS login page: %w", err)
	}

	form := doc.Find(p.LoginFormID).First()
	if form.Length() == 0 {
		return nil, fmt.Errorf("ATS login form %q not found", p.LoginFormID)
	}
	userField, ok := doc.Find(p.UsernameFieldID).First().Attr("name")
	if !ok {
		return nil, fmt.Errorf("ATS username field %q not found", p.UsernameFieldID)
	}
	passField, ok := doc.Find(p.PasswordFieldID).First().Attr("name")
	if !ok {
		return nil, fmt.Errorf("ATS password field %q not found", p.PasswordFieldID)
	}

	// Only the first submit control is posted, as a browser would. WebForms
	// portals run the login handler only for the button named in the post.
	values := url.Values{}
	submitted := false
	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		switch strings.ToLower(in.AttrOr("type", "")) {
		case "submit":
			if submitted {
				return
			}
			submitted = true
		case "button", "reset", "image":
			return
		}
		values.Set(name, in.AttrOr("value", ""))
	})
	values.Set(userField, username)
	values.Set(passField, password)

	action, err := loginURL.Parse(form.AttrOr("action", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid ATS form action: %w", err)
	}
	body, err := fetch(ctx, o, client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ATS login post failed: %w", err)
	}
	landing, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ATS landing page: %w", err)
	}
	// The portal wraps every page in the same form, so a rejected login is
	// recognised by the password field coming back.
	if landing.Find(p.PasswordFieldID).Length() > 0 {
		return nil, fmt.Errorf("%w: ATS login rejected for %s", models.ErrFatalConfig, username)
	}

	if err := settle(ctx, p.SettleDelay); err != nil {
		return nil, err
	}
	return landing, nil
}

// findDownloadLink returns the target of the control whose visible text
// contains label, matched case-insensitively.
func findDownloadLink(doc *goquery.Document, pageURL *url.URL, label string) (*url.URL, error) {
	var href string
	doc.Find("span, a, button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(strings.TrimSpace(s.Text())), label) {
			return true
		}
		link := s
		if goquery.NodeName(s) != "a" {
			link = s.Closest("a")
		}
		if h, ok := link.Attr("href"); ok && h != "" && !strings.HasPrefix(h, "#") {
			href = h
			return false
		}
		if h, ok := s.Attr("data-href"); ok && h != "" {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return nil, fmt.Errorf("ATS download control %q not found", label)
	}
	target, err := pageURL.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("invalid ATS download link %q: %w", href, err)
	}
	return target, nil
}

// downloadExport saves the export behind label into the download directory
// and waits for the portal to settle.
func downloadExport(ctx context.Context, o HTTPOptions, client *http.Client, p PortalOptions, doc *goquery.Document, pageURL *url.URL, label string) (string, error) {
	target, err := findDownloadLink(doc, pageURL, label)
	if err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make GET request to %s: %w", target.Redacted(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %q: received status code %d", label, resp.StatusCode)
	}

	if err := os.MkdirAll(p.DownloadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", p.DownloadDir, err)
	}
	localPath := filepath.Join(p.DownloadDir, exportFilename(resp.Header.Get("Content-Disposition"), label))
	outFile, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer outFile.Close()
	if _, err := io.Copy(outFile, resp.Body); err != nil {
		outFile.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("failed to copy downloaded content to %s: %w", localPath, err)
	}

	if err := settle(ctx, p.SettleDelay); err != nil {
		return "", err
	}
	return localPath, nil
}

func exportFilename(disposition, label string) string {
	prefix := time.Now().UTC().Format("20060102T150405") + "_" + strings.ReplaceAll(label, " ", "_")
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := filepath.Base(params["filename"]); name != "" && name != "." && name != "/" {
			return prefix + "_" + name
		}
	}
	return prefix + ".csv"
}

func getDocument(ctx context.Context, o HTTPOptions, client *http.Client, pageURL string) (*goquery.Document, error) {
	body, err := fetch(ctx, o, client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}
	return doc, nil
}

// settle waits out the portal's asynchronous page updates.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
