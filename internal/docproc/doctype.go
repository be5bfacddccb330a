package docproc

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/research-cli/internal/model"
)

var filingPattern = regexp.MustCompile(`(?i)10[-_]?k`)

// DetectDocType classifies a PDF as a filing or a reference document purely
// from its filename, since the PDF itself carries no reliable doc_type
// marker. Filenames matching a 10-K pattern ("10-K", "10k", "AAPL_10K_2024")
// are filings; everything else is treated as a reference document.
func DetectDocType(filename string) model.DocType {
	if filingPattern.MatchString(filepath.Base(filename)) {
		return model.DocTypeFiling
	}
	return model.DocTypeReference
}

var tickerYearPattern = regexp.MustCompile(`(?i)^([A-Z]{1,6})[-_].*?(\d{4})`)

// ParseDocumentIdentity extracts a best-effort ticker and fiscal year from
// a filename such as "AAPL-10K-2024.pdf"; both are empty/zero when the name
// doesn't follow the convention, leaving the caller to fill them in from the
// extraction itself.
func ParseDocumentIdentity(filename string) (ticker string, fiscalYear int) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	m := tickerYearPattern.FindStringSubmatch(base)
	if m == nil {
		return "", 0
	}
	ticker = strings.ToUpper(m[1])
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return ticker, 0
	}
	return ticker, year
}

// DocumentID derives the stable identifier used as the manifest key and
// extraction-JSON filename: the filename without its extension.
func DocumentID(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
