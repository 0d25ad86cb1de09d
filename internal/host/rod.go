package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type rodHost struct {
	config Config
}

// NewRodHost drives Chrome directly over CDP via rod instead of the
// playwright driver process.
func NewRodHost(ctx context.Context, config Config) (Host, error) {
	return &rodHost{
		config: config,
	}, nil
}

func (h *rodHost) Open(ctx context.Context, url string) (Page, error) {
	var l *launcher.Launcher
	var controlURL string
	var err error

	if h.config.ChromeDevtoolsProtocolURL == "" {
		l = launcher.New().Headless(h.config.Headless)
		controlURL, err = l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	} else {
		controlURL, err = launcher.ResolveURL(h.config.ChromeDevtoolsProtocolURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve CDP URL %s: %w", h.config.ChromeDevtoolsProtocolURL, err)
		}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Cleanup()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	rp := &rodPage{
		browser:  browser,
		launcher: l,
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		rp.Close()
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}
	rp.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             h.config.ViewportWidth,
		Height:            h.config.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		rp.Close()
		return nil, fmt.Errorf("failed to set viewport size: %w", err)
	}

	if h.config.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: h.config.UserAgent,
		}); err != nil {
			rp.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	if len(h.config.Headers) > 0 {
		var pairs []string
		for k, v := range h.config.Headers {
			pairs = append(pairs, k, v)
		}
		if _, err := page.SetExtraHeaders(pairs); err != nil {
			rp.Close()
			return nil, fmt.Errorf("failed to set HTTP headers: %w", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		rp.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		rp.Close()
		return nil, fmt.Errorf("failed to wait for page load: %w", err)
	}

	return rp, nil
}

type rodPage struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
}

func (p *rodPage) ScrollTo(ctx context.Context, y int) error {
	if _, err := p.page.Context(ctx).Eval(`y => window.scrollTo(0, y)`, y); err != nil {
		return fmt.Errorf("failed to scroll to %d: %w", y, err)
	}
	return nil
}

func (p *rodPage) CaptureVisible(ctx context.Context) ([]byte, error) {
	data, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return data, nil
}

func (p *rodPage) Evaluate(ctx context.Context, script string) ([]byte, error) {
	res, err := p.page.Context(ctx).Eval(script)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}
	data, err := json.Marshal(res.Value.Val())
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluation result: %w", err)
	}
	return data, nil
}

func (p *rodPage) Close() error {
	var err error
	if p.page != nil {
		err = p.page.Close()
	}
	if cerr := p.browser.Close(); err == nil {
		err = cerr
	}
	if p.launcher != nil {
		p.launcher.Cleanup()
	}
	return err
}
