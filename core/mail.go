package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"io/ioutil"
	"net/http"
	"net/mail"
	"path"
	"sync"
	texttmpl "text/template"
)

var (
	templates       tmplCache
	tmplBaseURL     string
	tmplInit        sync.Once
	emailTmplDir    = "assets/templates/email"
	emailTmplExtTxt = ".txt"
	emailTmplExtHTM = ".gohtml"
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: tmplCacheEntry}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates parses all email templates in fsys under assets/templates/email
// and caches them for EmailMessage.Render. Call once at startup.
func ParseEmailTemplates(fsys fs.FS, conf *Config, logger Logger) {
	tmplInit.Do(func() {
		tmplBaseURL = conf.FrontendBaseURL
		templates = make(tmplCache)

		entries, err := fs.ReadDir(fsys, emailTmplDir)
		if err != nil {
			logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
			return
		}
		for _, entry := range entries {
			fname := entry.Name()
			ext := path.Ext(fname)
			if fname[0] == '_' || !(ext == emailTmplExtTxt || ext == emailTmplExtHTM) {
				continue
			}
			name := fname[:len(fname)-len(ext)]
			cache, ok := templates[name]
			if !ok {
				cache = make(tmplCacheEntry)
				templates[name] = cache
			}

			fp := path.Join(emailTmplDir, fname)
			if ext == emailTmplExtTxt {
				tmpl, err := texttmpl.ParseFS(fsys, path.Join(emailTmplDir, "_base"+emailTmplExtTxt), fp)
				if err != nil {
					logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
					continue
				}
				if conf.Debug || conf.TestMode {
					tmpl = tmpl.Option("missingkey=error")
				}
				cache[ext] = tmpl
			} else {
				tmpl, err := htmltmpl.ParseFS(fsys, path.Join(emailTmplDir, "_base"+emailTmplExtHTM), fp)
				if err != nil {
					logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
					continue
				}
				cache[ext] = tmpl
			}
		}
	})
}

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: tmplBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(emailTmplExtTxt)
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, "base", m.getContextData()); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML() error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(emailTmplExtHTM)
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, "base", m.getContextData()); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

func (m *EmailMessage) Render() error {
	if err := m.renderText(); err != nil {
		return err
	}
	return m.renderHTML()
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}

	at := Attachment{Content: bytes.NewBuffer(content), Filename: filename}
	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
