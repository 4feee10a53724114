package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"finscraper/internal/assert"
	"finscraper/internal/components/telemetry"
	"finscraper/internal/pipeline"
)

const report_fetch_json = "fetch-json.action"

type JSONOptions struct {
	Name string
	Path string
	// DataPath is the dot separated location the response is stored under in the result
	// data, the response is merged at the root when empty.
	DataPath    string
	RequireAuth bool
}

// FetchJSON fetches a JSON object and contributes it to the result data.
func FetchJSON(opts JSONOptions, tel telemetry.API) pipeline.Adapter {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("adapters", tel)

	keys := []pipeline.SessionKey{HTTPClientKey}
	if opts.RequireAuth {
		keys = append(keys, AuthHeaderKey)
	}

	return pipeline.Adapter{
		Name: nameOr(opts.Name, fmt.Sprintf("fetch-json %s", opts.Path)),
		Validate: pipeline.All(
			pipeline.Requires(keys...),
			pipeline.Check(opts.Path != "", "json path is required"),
		),
		Action: func(ctx context.Context, view *pipeline.View) (*pipeline.ActionResult, error) {
			view.NotifyProgress(SCRAPING)

			req, err := request(ctx, view)
			if err != nil {
				return nil, err
			}
			res, err := req.SetHeader("Accept", "application/json").Get(opts.Path)
			if err != nil {
				return nil, classifyTransport(err)
			}
			err = checkStatus(res)
			if err != nil {
				return nil, err
			}

			var body map[string]any
			err = json.Unmarshal(res.Body(), &body)
			if err != nil {
				err = fmt.Errorf("decode %s: %w", opts.Path, err)
				tel.ReportBroken(report_fetch_json, err)
				return nil, err
			}

			return pipeline.Succeed(nestUnder(opts.DataPath, body)), nil
		},
	}
}
