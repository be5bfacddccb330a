package sqltool

// allowedColumns enumerates every table and column the planner prompt may
// reference and the validator will accept, mirroring internal/relstore's
// embedded schema.sql. Adding a column to that schema without mirroring it
// here makes the new column invisible to the tool rather than unsafely
// queryable.
var allowedColumns = map[string]map[string]bool{
	"companies": set("id", "ticker", "name", "sector", "fiscal_year_end", "filing_date", "document_id"),
	"financial_metrics": set("company_id", "fiscal_year", "revenue", "net_income", "gross_profit",
		"operating_income", "total_assets", "total_liabilities", "cash_and_equivalents", "eps", "currency"),
	"segment_revenue":    set("company_id", "fiscal_year", "segment", "revenue"),
	"geographic_revenue": set("company_id", "fiscal_year", "region", "revenue"),
	"risk_factors":       set("company_id", "fiscal_year", "title", "text"),
}

func set(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

// schemaPrompt is the schema-grounded description handed to the planner:
// every allowed table and column plus the hard rules it must follow.
const schemaPrompt = `You have read-only access to a PostgreSQL database with this schema:

companies(id, ticker, name, sector, fiscal_year_end, filing_date, document_id)
financial_metrics(company_id, fiscal_year, revenue, net_income, gross_profit,
  operating_income, total_assets, total_liabilities, cash_and_equivalents, eps, currency)
segment_revenue(company_id, fiscal_year, segment, revenue)
geographic_revenue(company_id, fiscal_year, region, revenue)
risk_factors(company_id, fiscal_year, title, text)

All monetary fields are expressed in millions of the row's currency.
financial_metrics, segment_revenue, geographic_revenue, and risk_factors all
reference companies via company_id; join on companies.id = company_id and
filter by companies.ticker to scope a question to one company.

Rules:
- Write exactly one SELECT statement. Never write INSERT, UPDATE, DELETE,
  DROP, ALTER, TRUNCATE, CREATE, GRANT, or REVOKE.
- Reference only the tables and columns listed above.
- Always include an explicit LIMIT, no greater than 100.
- Use parameterized placeholders ($1, $2, ...) for any literal values the
  caller supplies; do not inline untrusted values as string literals.
- Return only the SQL statement, nothing else.`
