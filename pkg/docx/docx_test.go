package docx

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/pdftrans/pkg/domain"
)

const sampleDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>
<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:rPr><w:b/></w:rPr><w:t>Hello </w:t></w:r><w:hyperlink r:id="rId9"><w:r><w:t>world</w:t></w:r></w:hyperlink><w:bookmarkStart w:id="0" w:name="x"/></w:p>
<w:p/>
<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t><w:br w:type="page"/></w:r><w:del><w:r><w:delText>gone</w:delText></w:r></w:del></w:p>
<w:tbl><w:tblPr/><w:tr><w:tc><w:tcPr/><w:p><w:r><w:t>A</w:t></w:r></w:p><w:p><w:r><w:t>A2</w:t></w:r></w:p></w:tc><w:tc><w:p/></w:tc></w:tr></w:tbl>
<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`

const sampleStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:rPr><w:lang w:val="en-US"/></w:rPr></w:style></w:styles>`

var mediaBytes = []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}

func buildPackage(t *testing.T, parts map[string][]byte, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(parts[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func openSample(t *testing.T) *Document {
	t.Helper()
	raw := buildPackage(t, map[string][]byte{
		contentTypesPart:       []byte(minimalContentTypes),
		documentPart:           []byte(sampleDocument),
		stylesPart:             []byte(sampleStyles),
		"word/media/image1.png": mediaBytes,
	}, []string{contentTypesPart, documentPart, "word/media/image1.png", stylesPart})

	doc, err := Read(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	return doc
}

func reopen(t *testing.T, d *Document) *Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, d.Write(&buf))
	out, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return out
}

func TestParagraphText(t *testing.T) {
	doc := openSample(t)
	paras := doc.Paragraphs()
	require.Len(t, paras, 3)

	assert.Equal(t, "Hello world", paras[0].Text())
	assert.Equal(t, "", paras[1].Text())
	assert.Equal(t, "a\tb\nc", paras[2].Text())
}

func TestTablesAndCells(t *testing.T) {
	doc := openSample(t)
	tables := doc.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, []int{2}, tables[0].Shape())

	cells := tables[0].Rows()[0].Cells()
	require.Len(t, cells, 2)
	assert.Equal(t, "A\nA2", cells[0].Text())
	assert.Len(t, cells[0].Paragraphs(), 2)
	assert.Equal(t, "", cells[1].Text())
}

func TestSetTextKeepsFormatting(t *testing.T) {
	doc := openSample(t)
	p := doc.Paragraphs()[0]
	p.SetText(" 你好\t世界\n第二行")

	assert.Equal(t, " 你好\t世界\n第二行", p.Text())

	xml := string(p.n.bytes())
	assert.Contains(t, xml, `<w:pPr><w:jc w:val="center"/></w:pPr>`)
	assert.Contains(t, xml, `<w:rPr><w:b/></w:rPr>`)
	assert.Contains(t, xml, `xml:space="preserve"`)
	assert.NotContains(t, xml, "hyperlink")
	assert.NotContains(t, xml, "bookmarkStart")

	p.Clear()
	assert.Equal(t, "", p.Text())
	assert.Equal(t, `<w:p><w:pPr><w:jc w:val="center"/></w:pPr></w:p>`, string(p.n.bytes()))
}

func TestSetTextDropsIllegalXMLChars(t *testing.T) {
	doc := openSample(t)
	doc.Paragraphs()[0].SetText("Hello\x0bWorld\x00\x0c!\uFFFE")
	doc.Tables()[0].Rows()[0].Cells()[0].Paragraphs()[0].SetText("a\x01b\tc")

	out := reopen(t, doc)
	assert.Equal(t, "HelloWorld!", out.Paragraphs()[0].Text())
	assert.Equal(t, "ab\tc", out.Tables()[0].Rows()[0].Cells()[0].Paragraphs()[0].Text())
}

func TestCellClearedParagraphsReadAsOne(t *testing.T) {
	doc := openSample(t)
	cell := doc.Tables()[0].Rows()[0].Cells()[0]
	paras := cell.Paragraphs()

	paras[0].SetText("B")
	paras[1].Clear()

	assert.Equal(t, "B", cell.Text())
	assert.Len(t, cell.Paragraphs(), 2)
}

func TestWriteRoundTrip(t *testing.T) {
	doc := openSample(t)
	doc.Paragraphs()[2].SetText("x & <y>")

	var buf bytes.Buffer
	require.NoError(t, doc.Write(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{contentTypesPart, documentPart, "word/media/image1.png", stylesPart}, names)

	out, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	media, err := out.readEntry("word/media/image1.png")
	require.NoError(t, err)
	assert.Equal(t, mediaBytes, media)

	assert.Equal(t, "x & <y>", out.Paragraphs()[2].Text())
	assert.Equal(t, "Hello world", out.Paragraphs()[0].Text())

	raw, err := out.readEntry(documentPart)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`)
	assert.Contains(t, string(raw), `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`)
}

func TestReadRejectsMalformedPackages(t *testing.T) {
	tests := []struct {
		name  string
		parts map[string][]byte
		order []string
	}{
		{
			name:  "missing document",
			parts: map[string][]byte{contentTypesPart: []byte(minimalContentTypes)},
			order: []string{contentTypesPart},
		},
		{
			name: "no body",
			parts: map[string][]byte{
				contentTypesPart: []byte(minimalContentTypes),
				documentPart:     []byte(`<w:document xmlns:w="` + WordNamespace + `"/>`),
			},
			order: []string{contentTypesPart, documentPart},
		},
		{
			name: "broken xml",
			parts: map[string][]byte{
				contentTypesPart: []byte(minimalContentTypes),
				documentPart:     []byte(`<w:document xmlns:w="` + WordNamespace + `"><w:body>`),
			},
			order: []string{contentTypesPart, documentPart},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := buildPackage(t, tt.parts, tt.order)
			_, err := Read(bytes.NewReader(raw), int64(len(raw)))
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeExtraction))
		})
	}

	_, err := Read(bytes.NewReader([]byte("not a zip")), 9)
	assert.True(t, domain.IsType(err, domain.ErrorTypeExtraction))
}

func TestCustomNamespacePrefix(t *testing.T) {
	custom := strings.NewReplacer("w:", "ns0:", "xmlns:w=", "xmlns:ns0=").Replace(sampleDocument)
	raw := buildPackage(t, map[string][]byte{
		contentTypesPart: []byte(minimalContentTypes),
		documentPart:     []byte(custom),
	}, []string{contentTypesPart, documentPart})

	doc, err := Read(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	assert.Equal(t, "ns0", doc.w)
	assert.Equal(t, "Hello world", doc.Paragraphs()[0].Text())
	assert.False(t, doc.SetDefaultFont("宋体", 10.5))
}

func TestSetDefaultFont(t *testing.T) {
	doc := openSample(t)
	require.True(t, doc.SetDefaultFont("宋体", 10.5))

	out := reopen(t, doc)
	name, size := out.DefaultFont()
	assert.Equal(t, "宋体", name)
	assert.Equal(t, 10.5, size)

	raw := string(out.styles.bytes())
	assert.Contains(t, raw, `<w:rPr><w:rFonts w:ascii="宋体" w:hAnsi="宋体" w:eastAsia="宋体"/><w:sz w:val="21"/><w:lang w:val="en-US"/></w:rPr>`)
}

func TestNewDocumentBuilder(t *testing.T) {
	doc := New()
	doc.AddParagraph("Hello")
	doc.AddPageBreak()
	doc.AddTable([][]string{{"A", "B"}, {"C", "two\nlines"}})
	doc.AddParagraph("World")

	out := reopen(t, doc)
	paras := out.Paragraphs()
	require.Len(t, paras, 3)
	assert.Equal(t, "Hello", paras[0].Text())
	assert.Equal(t, "", paras[1].Text())
	assert.Equal(t, "World", paras[2].Text())

	tables := out.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, []int{2, 2}, tables[0].Shape())
	cell := tables[0].Rows()[1].Cells()[1]
	assert.Len(t, cell.Paragraphs(), 2)
	assert.Equal(t, "two\nlines", cell.Text())

	raw := string(out.root.bytes())
	assert.True(t, strings.HasSuffix(raw, "</w:sectPr></w:body></w:document>"))

	out.SetDefaultFont("Arial", 12)
	name, size := out.DefaultFont()
	assert.Equal(t, "Arial", name)
	assert.Equal(t, 12.0, size)
}
