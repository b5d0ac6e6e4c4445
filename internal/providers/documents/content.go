package documents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/textenc"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
)

const defaultPreviewLines = 40

func (p *Provider) contentTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "documents.read",
			Name:        "Read Document",
			Description: "Read a text document, detecting its character set",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Document URI", Required: true},
				{Name: "encoding", Type: "string", Description: "Character set (default: detect)", Required: false},
				{Name: "max_bytes", Type: "number", Description: "Read limit (default from settings)", Required: false},
				{Name: "force", Type: "boolean", Description: "Read even if the document does not look like text", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "documents.preview",
			Name:        "Preview Document",
			Description: "Safe preview: sanitized HTML, the first lines of text, or metadata for binary files",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Document URI", Required: true},
				{Name: "lines", Type: "number", Description: "Lines of text to include (default 40)", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "documents.write",
			Name:        "Write Document",
			Description: "Replace a document's content, creating it if needed",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Document URI", Required: true},
				{Name: "content", Type: "string", Description: "New content", Required: true},
				{Name: "encoding", Type: "string", Description: "Character set to write (default utf-8)", Required: false},
				{Name: "bom", Type: "boolean", Description: "Write a UTF-8 byte order mark", Required: false},
			},
			Returns: "object",
		},
	}
}

func (p *Provider) maxReadBytes(params map[string]interface{}) int64 {
	n := types.GetInt(params, "max_bytes", p.prefs.Int(settings.KeyMaxReadBytes))
	if n <= 0 || n > utils.MaxContentSize {
		n = utils.MaxContentSize
	}
	return int64(n)
}

func (p *Provider) read(params map[string]interface{}) (*types.Result, error) {
	uri, ok := requireURI(params, "uri")
	if !ok {
		return types.Failure("uri parameter required")
	}

	text, err := doctree.ReadText(p.tree, uri, doctree.ReadOptions{
		MaxBytes: p.maxReadBytes(params),
		Encoding: types.GetString(params, "encoding"),
		Force:    types.GetBool(params, "force", false),
	})
	if err != nil {
		return p.textFailure("read", err)
	}
	if p.metrics != nil {
		p.metrics.RecordDocumentRead(int64(text.BytesRead))
	}

	return types.Success(textData(text))
}

func (p *Provider) preview(params map[string]interface{}) (*types.Result, error) {
	uri, ok := requireURI(params, "uri")
	if !ok {
		return types.Failure("uri parameter required")
	}

	doc, err := p.tree.Stat(uri)
	if err != nil {
		return p.treeFailure("preview", err)
	}
	if doc.IsDir || !doctree.IsText(doc.MIMEType) {
		data := documentData(doc)
		data["previewable"] = false
		return types.Success(data)
	}

	text, err := doctree.ReadText(p.tree, uri, doctree.ReadOptions{MaxBytes: p.maxReadBytes(nil)})
	if err != nil {
		return p.textFailure("preview", err)
	}
	if p.metrics != nil {
		p.metrics.RecordDocumentRead(int64(text.BytesRead))
	}

	data := documentData(doc)
	data["previewable"] = true
	data["encoding"] = text.Encoding
	data["truncated"] = text.Truncated

	if isHTML(doc.MIMEType) {
		page, err := renderHTML(text.Content)
		if err != nil {
			return types.Failure(fmt.Sprintf("preview failed: %v", err))
		}
		data["kind"] = "html"
		data["html"] = page.HTML
		data["title"] = page.Title
		data["text"] = page.Text
		data["links"] = page.Links
		return types.Success(data)
	}

	lines := types.GetInt(params, "lines", defaultPreviewLines)
	if lines <= 0 {
		lines = defaultPreviewLines
	}
	head, more := firstLines(text.Content, lines)
	data["kind"] = "text"
	data["text"] = head
	data["more"] = more || text.Truncated
	return types.Success(data)
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	uri, ok := requireURI(params, "uri")
	if !ok {
		return types.Failure("uri parameter required")
	}
	content, ok := params["content"].(string)
	if !ok {
		return types.Failure("content parameter required")
	}
	if err := utils.ValidateContent(content); err != nil {
		return types.Failure(err.Error())
	}

	doc, n, err := doctree.WriteText(p.tree, uri, content, types.GetString(params, "encoding"), types.GetBool(params, "bom", false))
	if err != nil {
		return p.textFailure("write", err)
	}
	if p.metrics != nil {
		p.metrics.RecordDocumentWrite(n)
	}

	data := documentData(doc)
	data["written"] = n
	return types.Success(data)
}

func (p *Provider) textFailure(op string, err error) (*types.Result, error) {
	if errors.Is(err, doctree.ErrNotText) || errors.Is(err, textenc.ErrUnsupported) {
		return types.Failure(fmt.Sprintf("%s failed: %v", op, err))
	}
	return p.treeFailure(op, err)
}

func textData(text doctree.Text) map[string]interface{} {
	data := documentData(text.Document)
	data["content"] = text.Content
	data["encoding"] = text.Encoding
	data["confidence"] = text.Confidence
	data["bom"] = text.BOM
	data["truncated"] = text.Truncated
	data["bytes_read"] = text.BytesRead
	data["lines"] = lineCount(text.Content)
	return data
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func firstLines(s string, n int) (string, bool) {
	idx := 0
	for i := 0; i < n; i++ {
		next := strings.IndexByte(s[idx:], '\n')
		if next < 0 {
			return s, false
		}
		idx += next + 1
	}
	return s[:idx], idx < len(s)
}

func isHTML(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	return base == "text/html" || base == "application/xhtml+xml"
}
