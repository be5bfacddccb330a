package vlm

import (
	"fmt"

	"github.com/sells-group/research-cli/internal/model"
)

// FilingPrompt builds the page-extraction prompt for a 10-K filing page:
// narrative text, tables, and the structured financial fields a filing page
// may carry.
func FilingPrompt(doc model.Document, pageNumber int) string {
	return fmt.Sprintf(`You are extracting structured data from page %d of a 10-K filing for %s (ticker %s, fiscal year %d).

Return a single JSON object with these fields:
- "text": the page's narrative text, verbatim, with tables rendered as markdown.
- "section": the filing section this page belongs to (e.g. "Item 7", "Item 8"), or "" if not identifiable.
- "content_type": one of "narrative", "table", "mixed".
- "tables": an array of {"caption": string, "headers": [string], "rows": [[string]]} for every table on the page; omit if none.
- "financial_metrics": an object with any of revenue, net_income, gross_profit, operating_income, total_assets, total_liabilities, cash_and_equivalents, eps, currency that this page states, as raw strings exactly as printed (e.g. "$1,234.5 million"); omit fields not present.
- "segment_data": an array of {"segment": string, "revenue": string} rows if this page reports segment revenue; omit if none.
- "geographic_data": an array of {"region": string, "revenue": string} rows if this page reports revenue by geography; omit if none.
- "risk_factors": an array of {"title": string, "text": string} if this page states named risk factors; omit if none.
- "cross_references": an array of section names this page explicitly refers the reader to (e.g. "See Note 12"); omit if none.

Respond with ONLY the JSON object, no surrounding prose.`, pageNumber, nameOrTicker(doc), doc.Ticker, doc.FiscalYear)
}

// ReferencePrompt builds the page-extraction prompt for a reference document
// page (news, research, policy) instead of a filing.
func ReferencePrompt(doc model.Document, pageNumber int) string {
	return fmt.Sprintf(`You are extracting structured data from page %d of a reference document (%s, source type %s).

Return a single JSON object with these fields:
- "text": the page's narrative text, verbatim.
- "headline": the document's headline or title, if present on this page; omit otherwise.
- "publication_date": the document's publication date in YYYY-MM-DD form, if stated; omit otherwise.
- "source": the publishing outlet or author, if stated; omit otherwise.
- "key_claims": an array of the page's substantive factual claims, each as a short standalone sentence; omit if none.
- "entities": an array of companies, people, or tickers named on this page; omit if none.

Respond with ONLY the JSON object, no surrounding prose.`, pageNumber, nameOrTicker(doc), doc.SourceType)
}

// repairPrompt is appended when the model's first response failed to parse
// as JSON, asking it to correct itself rather than re-deriving the page.
func repairPrompt(original, malformed, parseErr string) string {
	return fmt.Sprintf(`%s

Your previous response could not be parsed as JSON:

%s

Parse error: %s

Respond again with ONLY a single valid JSON object matching the schema above.`, original, malformed, parseErr)
}

func nameOrTicker(doc model.Document) string {
	if doc.Company != "" {
		return doc.Company
	}
	return doc.Ticker
}
