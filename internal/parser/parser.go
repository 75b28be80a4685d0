// Package parser turns search hits into jobs.Job records using title, URL,
// snippet and page metadata heuristics.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/search"
	"github.com/spigell/jobseekr/internal/utils"
)

const minTitleLength = 3

var (
	companyInTitle  = regexp.MustCompile(`@\s*([^|\-]+?)(?:\s*$|\s*\||\s*-)`)
	greenhouseBoard = regexp.MustCompile(`boards\.greenhouse\.io/([^/]+)/`)
	companyInMeta   = []*regexp.Regexp{
		regexp.MustCompile(`-\s*([^\-|]+?)\s*$`),
		regexp.MustCompile(`\|\s*([^\-|]+?)\s*$`),
		regexp.MustCompile(`at\s+([^\-|]+?)(?:\s*$|\s*\||\s*-)`),
	}

	locationInTitle = []*regexp.Regexp{
		regexp.MustCompile(`Remote\s*-\s*([^\-|]+)`),
		regexp.MustCompile(`([^\-|]+)\s*-\s*Remote`),
		regexp.MustCompile(`-\s*([^\-|,]+(?:,\s*[^\-|]+)*)\s*$`),
	}
	locationInSnippet = regexp.MustCompile(`Location[:.]?\s*([^\n\r.]+)`)
	remoteWord        = regexp.MustCompile(`\bremote\b`)
	notALocation      = []string{"engineer", "developer", "software", "job", "position"}

	salaryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$([\d,]+)\s*[–\-]\s*\$([\d,]+)`),
		regexp.MustCompile(`Compensation[:.]?\s*\$([\d,]+)\s*[–\-]\s*\$([\d,]+)`),
		regexp.MustCompile(`([\d,]+)K\s*[–\-]\s*([\d,]+)K`),
	}

	postedAgo = regexp.MustCompile(`(\d+\s+(?:day|hour|minute|second)s?\s+ago)`)

	titleCaser = cases.Title(language.English)
)

type Parser struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse converts every usable hit of results into a Job, preserving order.
// Hits without a title or link, or failing Validate, are dropped.
func (p *Parser) Parse(results *search.Results) (parsed []jobs.Job, err error) {
	if results == nil {
		return nil, &jobs.JobParsingError{Err: fmt.Errorf("no search results")}
	}

	defer func() {
		if r := recover(); r != nil {
			parsed = nil
			err = &jobs.JobParsingError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	parsed = make([]jobs.Job, 0, len(results.Items))
	for _, item := range results.Items {
		job, ok := p.parseItem(item)
		if !ok {
			continue
		}
		if !Validate(job) {
			p.logger.Debug("dropping invalid job", zap.String("title", job.Title), zap.String("url", job.URL))
			continue
		}
		parsed = append(parsed, job)
	}

	p.logger.Debug("parsed search results", zap.Int("items", results.Len()), zap.Int("jobs", len(parsed)))
	return parsed, nil
}

func (p *Parser) parseItem(item *search.Item) (jobs.Job, bool) {
	if item == nil {
		return jobs.Job{}, false
	}

	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return jobs.Job{}, false
	}

	return jobs.Job{
		ID:             utils.JobID(link),
		Title:          title,
		URL:            link,
		Description:    item.Snippet,
		PostedTime:     PostedTime(item.Snippet),
		Company:        Company(item),
		Location:       Location(title, item.Snippet),
		EmploymentType: jobs.DefaultEmploymentType,
		Salary:         Salary(item.Snippet),
		LogoURL:        logoURL(item),
	}, true
}

// Validate reports whether job has a meaningful title and an http(s) URL.
func Validate(job jobs.Job) bool {
	if job.Title == "" || job.URL == "" {
		return false
	}
	if len([]rune(job.Title)) < minTitleLength {
		return false
	}
	return strings.HasPrefix(job.URL, "http://") || strings.HasPrefix(job.URL, "https://")
}

// Company tries the "@ Company" title form, then the greenhouse board slug, then og:title.
func Company(item *search.Item) string {
	if m := companyInTitle.FindStringSubmatch(item.Title); m != nil {
		return strings.TrimSpace(m[1])
	}

	if strings.Contains(item.Link, "greenhouse.io") {
		if m := greenhouseBoard.FindStringSubmatch(item.Link); m != nil {
			return titleCaser.String(strings.ReplaceAll(m[1], "-", " "))
		}
	}

	if len(item.Pagemap.Metatags) > 0 {
		ogTitle := item.Pagemap.Metatags[0]["og:title"]
		for _, re := range companyInMeta {
			if m := re.FindStringSubmatch(ogTitle); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
	}

	return ""
}

// Location tries title patterns, then a "Location:" snippet line, then the remote keyword.
func Location(title, snippet string) string {
	for _, re := range locationInTitle {
		m := re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if !looksLikeRole(candidate) {
			return candidate
		}
	}

	if m := locationInSnippet.FindStringSubmatch(snippet); m != nil {
		return strings.TrimSpace(m[1])
	}

	if remoteWord.MatchString(strings.ToLower(title)) {
		return "Remote"
	}

	return ""
}

func looksLikeRole(s string) bool {
	lower := strings.ToLower(s)
	for _, term := range notALocation {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Salary returns a "$low - $high" range found in snippet.
func Salary(snippet string) string {
	for _, re := range salaryPatterns {
		if m := re.FindStringSubmatch(snippet); m != nil {
			return fmt.Sprintf("$%s - $%s", m[1], m[2])
		}
	}
	return ""
}

// PostedTime returns a relative "N days ago" label from snippet, or jobs.UnknownPostedTime.
func PostedTime(snippet string) string {
	if m := postedAgo.FindStringSubmatch(snippet); m != nil {
		return m[1]
	}
	return jobs.UnknownPostedTime
}

func logoURL(item *search.Item) string {
	if len(item.Pagemap.CSEImage) > 0 {
		return item.Pagemap.CSEImage[0].Src
	}
	return ""
}
