package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/3leaps/gorunner/internal/orchestrator"
)

const responseParamsFile = "output-response-params.js"

var responseParamKeys = []string{
	"currentPage", "totalPages", "pageSize", "totalCount",
	"hasPrevious", "hasNext", "succeeded", "errors", "message",
}

// writeResponseParams extracts the pagination/status envelope fields from
// the target job's response and writes them to ./output-response-params.js
// with the bulky "data" field redacted, per spec.md §6.
func writeResponseParams(report *orchestrator.Report, targetJobID string) error {
	result, ok := report.Results[targetJobID]
	if !ok {
		return fmt.Errorf("no result recorded for job %q", targetJobID)
	}
	body, ok := result.Data.(map[string]any)
	if !ok {
		return fmt.Errorf("response body is not an object, nothing to extract")
	}

	out := make(map[string]any, len(responseParamKeys)+1)
	for _, k := range responseParamKeys {
		if v, present := body[k]; present {
			out[k] = v
		}
	}
	if _, hadData := body["data"]; hadData {
		out["data"] = "[REDACTED]"
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response params: %w", err)
	}

	content := "module.exports = " + string(encoded) + ";\n"
	return os.WriteFile(responseParamsFile, []byte(content), 0o644)
}
