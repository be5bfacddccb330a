package vlm

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
)

// DefaultRenderDPI is the resolution a Renderer records when NewRenderer is
// given dpi <= 0. RenderPages does not rasterize pages, so the value does
// not change its output.
const DefaultRenderDPI = 150

// RenderedPage is one page's image form (empty when the page has no
// embedded image), ready to hand to a vision model call.
type RenderedPage struct {
	PageNumber  int
	ImageBase64 string
	MediaType   string
}

// Renderer turns PDF pages into images via pdfcpu's image extraction: it
// pulls the raster images embedded in each page and does not rasterize
// vector or text page content. It follows the temp-file-then-defer-remove
// discipline, since pdfcpu's extraction APIs operate on files rather than
// byte buffers.
type Renderer struct {
	tempDir string
	dpi     int
}

func NewRenderer(dpi int) *Renderer {
	if dpi <= 0 {
		dpi = DefaultRenderDPI
	}
	tempDir := filepath.Join(os.TempDir(), "research-cli-vlm")
	_ = os.MkdirAll(tempDir, 0o755)
	return &Renderer{tempDir: tempDir, dpi: dpi}
}

// RenderPages writes pdfBytes to a scratch file, determines the page count,
// and extracts the PDF's embedded images, keeping the largest one found for
// each page as that page's base64-encoded image. Pages are not rasterized
// and the renderer's DPI is not applied. A page with no embedded image (or
// every page, when image extraction fails) is returned with an empty
// ImageBase64 rather than aborting the document; the extractor still sends
// it through the same vision call and prompt.
func (r *Renderer) RenderPages(ctx context.Context, pdfBytes []byte) ([]RenderedPage, error) {
	tempFile := filepath.Join(r.tempDir, fmt.Sprintf("render_%d.pdf", os.Getpid()))
	if err := os.WriteFile(tempFile, pdfBytes, 0o644); err != nil {
		return nil, eris.Wrap(err, "vlm: write scratch pdf")
	}
	defer os.Remove(tempFile)

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, eris.Wrap(err, "vlm: read pdf context")
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(r.tempDir, "pages_*")
	if err != nil {
		return nil, eris.Wrap(err, "vlm: create image scratch dir")
	}
	defer os.RemoveAll(outDir)

	conf := pdfmodel.NewDefaultConfiguration()

	pages := make([]RenderedPage, pageCount)
	for i := range pages {
		pages[i] = RenderedPage{PageNumber: i + 1}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := api.ExtractImagesFile(tempFile, outDir, nil, conf); err != nil {
		// No embedded raster images (common for vector/text-native filing
		// pages): every page is returned without an image.
		return pages, nil
	}

	byPage, err := groupExtractedImagesByPage(outDir)
	if err != nil {
		return pages, nil
	}

	for pageNum, imgPath := range byPage {
		if pageNum < 1 || pageNum > pageCount {
			continue
		}
		data, err := os.ReadFile(imgPath)
		if err != nil {
			continue
		}
		pages[pageNum-1].ImageBase64 = base64.StdEncoding.EncodeToString(data)
		pages[pageNum-1].MediaType = mediaTypeForExt(filepath.Ext(imgPath))
	}

	return pages, nil
}

// groupExtractedImagesByPage picks, for each page, the largest image pdfcpu
// extracted for it (pdfcpu names extracted files "<page>_<n>.<ext>";
// largest-by-size is the best proxy for "the page's dominant visual" when a
// page embeds several small images such as icons alongside a scanned body).
func groupExtractedImagesByPage(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	best := map[int]string{}
	bestSize := map[int]int64{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		page, ok := leadingPageNumber(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize[page] {
			bestSize[page] = info.Size()
			best[page] = filepath.Join(dir, e.Name())
		}
	}
	return best, nil
}

func leadingPageNumber(name string) (int, bool) {
	base := name
	for i, r := range base {
		if r < '0' || r > '9' {
			base = base[:i]
			break
		}
	}
	if base == "" {
		return 0, false
	}
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0, false
	}
	return n, true
}

func mediaTypeForExt(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "image/png"
	}
}

// sortedPageNumbers returns byPage's page numbers in ascending order,
// independent of map iteration order. Nothing in this module calls it.
func sortedPageNumbers(byPage map[int]string) []int {
	out := make([]int, 0, len(byPage))
	for k := range byPage {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
