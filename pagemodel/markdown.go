package pagemodel

import (
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Markdown renders page markup as markdown. The language collaborators get
// this alongside the structured model; prose reads better from markdown
// than from raw HTML.
func Markdown(source, pageURL string) (string, error) {
	md, err := mdConverter.ConvertString(Sanitize(source), converter.WithDomain(pageURL))
	if err != nil {
		return "", fmt.Errorf("pagemodel: markdown convert: %w", err)
	}
	return md, nil
}
