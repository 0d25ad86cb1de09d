package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

type playwrightHost struct {
	config Config
}

func NewPlaywrightHost(ctx context.Context, config Config) (Host, error) {
	return &playwrightHost{
		config: config,
	}, nil
}

func (h *playwrightHost) Open(ctx context.Context, url string) (Page, error) {
	p, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var browser playwright.Browser

	if h.config.ChromeDevtoolsProtocolURL == "" {
		browser, err = p.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(h.config.Headless),
		})
		if err != nil {
			p.Stop()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	} else {
		browser, err = p.Chromium.ConnectOverCDP(h.config.ChromeDevtoolsProtocolURL)
		if err != nil {
			p.Stop()
			return nil, fmt.Errorf("failed to connect to browser via CDP at %s: %w", h.config.ChromeDevtoolsProtocolURL, err)
		}
	}

	var contextOptions []playwright.BrowserNewPageOptions
	if h.config.UserAgent != "" {
		contextOptions = append(contextOptions, playwright.BrowserNewPageOptions{
			UserAgent: playwright.String(h.config.UserAgent),
		})
	}

	page, err := browser.NewPage(contextOptions...)
	if err != nil {
		browser.Close()
		p.Stop()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	pp := &playwrightPage{
		pw:      p,
		browser: browser,
		page:    page,
		done:    make(chan struct{}),
	}

	go func() {
		select {
		case <-ctx.Done():
			page.Close()
		case <-pp.done:
		}
	}()

	if err := page.SetViewportSize(h.config.ViewportWidth, h.config.ViewportHeight); err != nil {
		pp.Close()
		return nil, fmt.Errorf("failed to set viewport size: %w", err)
	}

	if len(h.config.Headers) > 0 {
		if err := page.SetExtraHTTPHeaders(h.config.Headers); err != nil {
			pp.Close()
			return nil, fmt.Errorf("failed to set HTTP headers: %w", err)
		}
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(h.config.Timeout.Milliseconds())),
	}); err != nil {
		pp.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	return pp, nil
}

type playwrightPage struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	done    chan struct{}
}

func (p *playwrightPage) ScrollTo(ctx context.Context, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Evaluate(`y => window.scrollTo(0, y)`, y); err != nil {
		return fmt.Errorf("failed to scroll to %d: %w", y, err)
	}
	return nil
}

func (p *playwrightPage) CaptureVisible(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return data, nil
}

func (p *playwrightPage) Evaluate(ctx context.Context, script string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := p.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluation result: %w", err)
	}
	return data, nil
}

func (p *playwrightPage) Close() error {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	err := p.page.Close()
	p.browser.Close()
	p.pw.Stop()
	return err
}
