package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/spigell/jobseekr/internal/jobs"
)

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "jobs.json", want: formatJSON},
		{path: "out/JOBS.YAML", want: formatYAML},
		{path: "jobs.yml", want: formatYAML},
		{path: "jobs.csv", wantErr: true},
		{path: "jobs", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, err := formatFromPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRecommendation(t *testing.T) {
	t.Parallel()

	rec, err := parseRecommendation(" Apply ")
	require.NoError(t, err)
	assert.Equal(t, jobs.RecommendApply, rec)

	rec, err = parseRecommendation("")
	require.NoError(t, err)
	assert.Empty(t, rec)

	_, err = parseRecommendation("later")
	assert.Error(t, err)
}

func TestEncodeJobs(t *testing.T) {
	t.Parallel()

	list := []*jobs.ProcessedJob{{
		URL:            "https://x.com/1",
		Title:          "Go Engineer",
		Recommendation: jobs.RecommendMaybe,
		FitScore:       3,
		Confidence:     4,
		ProcessedAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}}

	var js bytes.Buffer
	require.NoError(t, encodeJobs(&js, formatJSON, list))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "https://x.com/1", decoded[0]["job_url"])
	assert.Equal(t, "maybe", decoded[0]["recommendation"])

	var ym bytes.Buffer
	require.NoError(t, encodeJobs(&ym, formatYAML, list))
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, 3, fromYAML[0]["fit_score"])

	var empty bytes.Buffer
	require.NoError(t, encodeJobs(&empty, formatJSON, nil))
	assert.Equal(t, "[]\n", empty.String())
}
