package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"finscraper/internal/assert"
	"finscraper/internal/components/telemetry"
	"finscraper/internal/pipeline"
	"finscraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

const (
	report_scrape_table  = "scrape-table.action"
	report_scrape_fields = "scrape-fields.action"
)

const default_match_threshold = 0.85

// canonical transaction fields and the headers portals are known to use for them.
var fieldAliases = []struct {
	field   string
	aliases []string
}{
	{field: "date", aliases: []string{"date", "posted", "posting date", "transaction date", "value date", "booking date"}},
	{field: "description", aliases: []string{"description", "details", "memo", "narrative", "payee", "transaction"}},
	{field: "amount", aliases: []string{"amount", "value", "debit/credit", "transaction amount"}},
	{field: "balance", aliases: []string{"balance", "running balance", "available balance"}},
	{field: "reference", aliases: []string{"reference", "ref", "transaction id", "check number", "cheque number"}},
}

func normalizeHeader(header string) string {
	return strings.Trim(strings.ToLower(htmlutil.Normalize(header)), ".:#*")
}

// matchHeader maps a table header to a canonical field, by alias first and by Jaro-Winkler
// similarity to an alias second. A header matching nothing is returned normalized with
// underscores for spaces.
func matchHeader(header string, threshold float64) (string, bool) {
	normalized := normalizeHeader(header)
	if normalized == "" {
		return "", false
	}
	for _, entry := range fieldAliases {
		for _, alias := range entry.aliases {
			if normalized == alias {
				return entry.field, true
			}
		}
	}

	bestField := ""
	bestScore := 0.0
	for _, entry := range fieldAliases {
		for _, alias := range entry.aliases {
			score := matchr.JaroWinkler(normalized, alias, false)
			if score > bestScore {
				bestScore = score
				bestField = entry.field
			}
		}
	}
	if bestScore >= threshold {
		return bestField, true
	}
	return strings.ReplaceAll(normalized, " ", "_"), false
}

// columnNames maps every header cell to the key its column is stored under. A canonical field
// is only given to the first column matching it, and no two columns share a key: repeated
// names get a numeric suffix ("date", "date_2").
func columnNames(headers []string, threshold float64) []string {
	claimed := map[string]bool{}
	names := make([]string, len(headers))
	for i, header := range headers {
		name, canonical := matchHeader(header, threshold)
		if canonical && claimed[name] {
			name = strings.ReplaceAll(normalizeHeader(header), " ", "_")
		}
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		unique := name
		for n := 2; claimed[unique]; n++ {
			unique = fmt.Sprintf("%s_%d", name, n)
		}
		claimed[unique] = true
		names[i] = unique
	}
	return names
}

// parseAmount reads amounts the way statements print them: "$1,024.00", "-4.50", "(12.00)".
func parseAmount(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	negative := false
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		negative = true
		text = text[1 : len(text)-1]
	}
	text = strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '€', '£', ' ':
			return -1
		}
		return r
	}, text)
	if strings.HasSuffix(text, "-") {
		negative = !negative
		text = strings.TrimSuffix(text, "-")
	}
	if text == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

func isAmountField(name string) bool {
	return name == "amount" || name == "balance"
}

type TableOptions struct {
	Name      string
	AccountID string
	Path      string
	// Selector selects the transactions table on the page.
	Selector     string
	RequireLogin bool
	// MatchThreshold is the Jaro-Winkler similarity above which a header is taken for a
	// canonical field, 0.85 when zero.
	MatchThreshold float64
}

func readTable(table *goquery.Selection, threshold float64) ([]any, error) {
	headerRow := table.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
		return row.Find("th").Length() > 0
	}).First()
	if headerRow.Length() == 0 {
		return nil, fmt.Errorf("table has no header row")
	}

	var headers []string
	headerRow.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, htmlutil.Text(cell))
	})
	names := columnNames(headers, threshold)

	rows := []any{}
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 {
			return
		}
		record := map[string]any{}
		empty := true
		row.Find("td").Each(func(i int, cell *goquery.Selection) {
			if i >= len(names) {
				return
			}
			text := htmlutil.Text(cell)
			if text != "" {
				empty = false
			}
			if isAmountField(names[i]) {
				if value, ok := parseAmount(text); ok {
					record[names[i]] = value
					return
				}
			}
			record[names[i]] = text
		})
		if !empty {
			rows = append(rows, record)
		}
	})
	return rows, nil
}

// ScrapeTable reads the transactions table of an account.
//
// It contributes {"accounts": {<AccountID>: {"transactions": [...]}}}.
func ScrapeTable(opts TableOptions, tel telemetry.API) pipeline.Adapter {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("adapters", tel)

	threshold := opts.MatchThreshold
	if threshold <= 0 {
		threshold = default_match_threshold
	}

	validators := []pipeline.ValidateFunc{
		pipeline.Requires(HTTPClientKey),
		pipeline.Check(opts.AccountID != "", "account id is required"),
		pipeline.Check(opts.Path != "", "table path is required"),
		pipeline.Check(opts.Selector != "", "table selector is required"),
	}
	if opts.RequireLogin {
		validators = append(validators, requireLogin)
	}

	return pipeline.Adapter{
		Name:     nameOr(opts.Name, fmt.Sprintf("scrape-table %s", opts.AccountID)),
		Validate: pipeline.All(validators...),
		Action: func(ctx context.Context, view *pipeline.View) (*pipeline.ActionResult, error) {
			view.NotifyProgress(SCRAPING)

			doc, _, err := getDocument(ctx, view, opts.Path)
			if err != nil {
				return nil, err
			}
			table := doc.Find(opts.Selector).First()
			if table.Length() == 0 {
				err := fmt.Errorf("could not find table %q", opts.Selector)
				tel.ReportBroken(report_scrape_table, err, opts.Path)
				return nil, err
			}

			rows, err := readTable(table, threshold)
			if err != nil {
				tel.ReportBroken(report_scrape_table, err, opts.Path)
				return nil, err
			}
			tel.ReportCount("scrape-table.rows", int64(len(rows)))

			return pipeline.Succeed(accountData(opts.AccountID, map[string]any{
				"transactions": rows,
			})), nil
		},
	}
}

type FieldOptions struct {
	Name      string
	AccountID string
	Path      string
	// Fields maps a field name to the selector of the element holding its value.
	Fields       map[string]string
	RequireLogin bool
}

// ScrapeFields reads single values of an account, like its name or balance. Fields named
// like amounts ("balance", "amount") are stored as numbers when they parse as one.
//
// It contributes {"accounts": {<AccountID>: {<field>: value}}}.
func ScrapeFields(opts FieldOptions, tel telemetry.API) pipeline.Adapter {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("adapters", tel)

	validators := []pipeline.ValidateFunc{
		pipeline.Requires(HTTPClientKey),
		pipeline.Check(opts.AccountID != "", "account id is required"),
		pipeline.Check(opts.Path != "", "fields path is required"),
		pipeline.Check(len(opts.Fields) > 0, "at least one field is required"),
	}
	if opts.RequireLogin {
		validators = append(validators, requireLogin)
	}

	return pipeline.Adapter{
		Name:     nameOr(opts.Name, fmt.Sprintf("scrape-fields %s", opts.AccountID)),
		Validate: pipeline.All(validators...),
		Action: func(ctx context.Context, view *pipeline.View) (*pipeline.ActionResult, error) {
			view.NotifyProgress(SCRAPING)

			doc, _, err := getDocument(ctx, view, opts.Path)
			if err != nil {
				return nil, err
			}

			fields := map[string]any{}
			for name, selector := range opts.Fields {
				selection := doc.Find(selector).First()
				if selection.Length() == 0 {
					tel.ReportWarning(report_scrape_fields, fmt.Errorf("could not find field %q (%s)", name, selector))
					continue
				}
				text := htmlutil.Text(selection)
				if isAmountField(name) {
					if value, ok := parseAmount(text); ok {
						fields[name] = value
						continue
					}
				}
				fields[name] = text
			}

			return pipeline.Succeed(accountData(opts.AccountID, fields)), nil
		},
	}
}
