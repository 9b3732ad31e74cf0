package core

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"seiassist/lib/htmlutil"
	"seiassist/lib/restyutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/encoding/charmap"
)

var tracer = otel.Tracer("scrapers/sei/core")

var instrumentOutput restyutil.InstrumentOutput

// SetInstrumentOutput enables request/response dumps for every client
// created afterwards. Used by CLIs when debug artifacts are requested.
func SetInstrumentOutput(output restyutil.InstrumentOutput) {
	instrumentOutput = output
}

const (
	DefaultLoginPath = "/sip/login.php?sigla_orgao_sistema=GOVMG&sigla_sistema=SEI&infra_url=L3NlaS8="

	orgCookie = "SIP_U_GOVMG_SEI"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	OrgCode string

	loginPath string
}

type ClientOptions struct {
	// portal address without trailing slash, e.g. https://www.sei.mg.gov.br
	BaseUrl string
	// organization code submitted at login and pinned in the org cookie
	OrgCode string
	// optional, DefaultLoginPath when empty
	LoginPath string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrConfig)
	}
	if opts.OrgCode == "" {
		return nil, fmt.Errorf("%w: organization code is required", ErrConfig)
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)
	client.SetCookie(&http.Cookie{
		Name:   orgCookie,
		Value:  opts.OrgCode,
		Domain: baseUrl.Hostname(),
	})

	restyutil.InstrumentClient(client, tracer, instrumentOutput)

	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return &Client{
		BaseUrl:   baseUrl,
		Http:      client,
		OrgCode:   opts.OrgCode,
		loginPath: loginPath,
	}, nil
}

// AbsoluteUrl resolves a href lifted from portal markup against the
// portal's application root.
func (c *Client) AbsoluteUrl(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	base := *c.BaseUrl
	base.Path = "/sei/"
	ref, err := url.Parse(strings.TrimPrefix(href, "/"))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// the portal serves windows-era latin-1, everything downstream wants
// utf-8
func DecodeLatin1(body []byte) string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// GetPage fetches a page and returns its body decoded to utf-8.
func (c *Client) GetPage(ctx context.Context, pageUrl string) (string, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(pageUrl)
	if err != nil {
		return "", err
	}
	if res.StatusCode() >= 400 {
		return "", fmt.Errorf("GET %s: status %d", pageUrl, res.StatusCode())
	}
	return DecodeLatin1(res.Body()), nil
}

// PostForm submits form data and returns the body decoded to utf-8.
// `referer` may be empty.
func (c *Client) PostForm(ctx context.Context, actionUrl string, data map[string]string, referer string) (string, error) {
	req := c.Http.R().
		SetContext(ctx).
		SetFormData(data)
	if referer != "" {
		req.SetHeader("referer", referer)
	}
	res, err := req.Post(actionUrl)
	if err != nil {
		return "", err
	}
	if res.StatusCode() >= 400 {
		return "", fmt.Errorf("POST %s: status %d", actionUrl, res.StatusCode())
	}
	return DecodeLatin1(res.Body()), nil
}

// Login authenticates against the portal and returns the post-login
// HTML, which downstream uses to discover the control panel.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrLogin)
	}

	_, err := c.Http.R().
		SetContext(ctx).
		Get(c.loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return "", fmt.Errorf("%w: %v", ErrLogin, err)
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"txtUsuario": username,
			"pwdSenha":   password,
			"selOrgao":   c.OrgCode,
			"hdnAcao":    "2",
			"Acessar":    "Acessar",
		}).
		Post(c.loginPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return "", fmt.Errorf("%w: %v", ErrLogin, err)
	}

	body := DecodeLatin1(res.Body())
	if strings.Contains(body, "Sair") || strings.Contains(body, "Controle de Processos") {
		return body, nil
	}

	lowered := strings.ToLower(body)
	switch {
	case strings.Contains(lowered, "usuário ou senha") || strings.Contains(lowered, "inval"):
		span.SetStatus(codes.Error, ErrBadCredentials.Error())
		return "", ErrBadCredentials
	case strings.Contains(lowered, "bloqueado") || strings.Contains(lowered, "bloqueio"):
		span.SetStatus(codes.Error, ErrAccountLocked.Error())
		return "", ErrAccountLocked
	}
	span.SetStatus(codes.Error, ErrLoginUnconfirmed.Error())
	return "", ErrLoginUnconfirmed
}

// OpenControlPanel discovers the process control page from the
// post-login HTML (falling back to the canonical URL) and fetches it.
func (c *Client) OpenControlPanel(ctx context.Context, postLoginHtml string) (html string, pageUrl string, err error) {
	ctx, span := tracer.Start(ctx, "client:OpenControlPanel")
	defer span.End()

	pageUrl = c.AbsoluteUrl("controlador.php?acao=procedimento_controlar")

	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(postLoginHtml))
	if err == nil {
		for _, anchor := range htmlutil.GetAnchors(doc.Find("a[href]")) {
			if strings.Contains(anchor.Href, "acao=procedimento_controlar") {
				pageUrl = c.AbsoluteUrl(anchor.Href)
				break
			}
		}
	}

	html, err = c.GetPage(ctx, pageUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open control panel")
		return "", "", err
	}
	return html, pageUrl, nil
}
