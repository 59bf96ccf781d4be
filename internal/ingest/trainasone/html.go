package trainasone

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/claude/trainaspower/internal/models"
	"github.com/claude/trainaspower/internal/workout"
)

var workoutIDRe = regexp.MustCompile(`workoutId=([^&]+)`)

// CalendarEntry is an upcoming day with a planned workout.
type CalendarEntry struct {
	Date      time.Time
	URL       string
	WorkoutID string
}

// WorkoutPage is what the planned-workout page shows.
type WorkoutPage struct {
	Number   string
	Title    string
	Duration models.Quantity
	Distance models.Quantity
	Steps    []models.TextStep
}

// Name is the workout number followed by its title, e.g. "123 Easy Run".
func (p *WorkoutPage) Name() string {
	return strings.TrimSpace(p.Number + " " + p.Title)
}

// ParseCalendar lists today's and future days that carry a workout, in page
// order. Relative links are resolved against base and year-less dates
// against now.
func ParseCalendar(body []byte, base *url.URL, now time.Time) ([]CalendarEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	var entries []CalendarEntry
	var parseErr error
	doc.Find(".today, .future").EachWithBreak(func(_ int, day *goquery.Selection) bool {
		link := day.Find(".workout a").First()
		if link.Length() == 0 {
			link = day.Find(".summary>b>a").First()
		}
		href, ok := link.Attr("href")
		if !ok {
			return true
		}

		date, err := parseDayTitle(lastLine(day.Find(".title").First().Text()), now)
		if err != nil {
			parseErr = err
			return false
		}
		ref, err := url.Parse(href)
		if err != nil {
			parseErr = fmt.Errorf("workout link %q: %w", href, err)
			return false
		}
		abs := ref
		if base != nil {
			abs = base.ResolveReference(ref)
		}

		entry := CalendarEntry{Date: date, URL: abs.String()}
		if m := workoutIDRe.FindStringSubmatch(href); m != nil {
			entry.WorkoutID, _ = url.QueryUnescape(m[1])
		}
		entries = append(entries, entry)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(entries) == 0 {
		return nil, errors.New("next workout not found on calendar")
	}
	return entries, nil
}

// ParseWorkoutPage extracts the summary, totals and rendered steps.
func ParseWorkoutPage(body []byte) (*WorkoutPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing workout page: %w", err)
	}

	page := &WorkoutPage{
		Number: summaryNumber(doc.Find(".summary sup").First()),
		Title:  strings.TrimSpace(doc.Find(".summary span").First().Text()),
	}

	detail := doc.Find(".detail").First()
	if detail.Length() > 0 {
		d, ok, err := workout.ParseDuration(detail.ChildrenFiltered("span").First().Text())
		if err != nil {
			return nil, fmt.Errorf("parsing workout duration: %w", err)
		}
		if ok {
			page.Duration = d
		}
		d, ok, err = workout.ParseDistance(detail.Text())
		if err != nil {
			return nil, fmt.Errorf("parsing workout distance: %w", err)
		}
		if ok {
			page.Distance = d
		}
	}

	page.Steps = textSteps(doc.Find(".workoutSteps>ol>li"))
	return page, nil
}

// textSteps maps <li> items to text steps, nesting the items of a child <ol>.
func textSteps(items *goquery.Selection) []models.TextStep {
	steps := make([]models.TextStep, 0, items.Length())
	items.Each(func(_ int, li *goquery.Selection) {
		step := models.TextStep{
			Text:    strings.TrimSpace(li.Text()),
			Classes: strings.Fields(li.AttrOr("class", "")),
		}
		if nested := li.ChildrenFiltered("ol").ChildrenFiltered("li"); nested.Length() > 0 {
			step.Children = textSteps(nested)
		}
		steps = append(steps, step)
	})
	return steps
}

// summaryNumber reads the workout number, which the site's CDN sometimes
// obfuscates as if it were an email address.
func summaryNumber(sup *goquery.Selection) string {
	if enc, ok := sup.Find("[data-cfemail]").Attr("data-cfemail"); ok {
		if dec, err := decodeCloudflareEmail(enc); err == nil {
			return dec
		}
	}
	return strings.TrimSpace(sup.Text())
}

func decodeCloudflareEmail(enc string) (string, error) {
	if len(enc) < 2 || len(enc)%2 != 0 {
		return "", fmt.Errorf("bad encoded value %q", enc)
	}
	key, err := strconv.ParseUint(enc[:2], 16, 8)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i := 2; i < len(enc); i += 2 {
		c, err := strconv.ParseUint(enc[i:i+2], 16, 8)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte(c ^ key))
	}
	return b.String(), nil
}

var dayLayouts = []string{
	"2006-01-02",
	"Monday 2 January 2006",
	"Monday, 2 January 2006",
	"Mon 2 Jan 2006",
	"Mon, 2 Jan 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var yearlessLayouts = []string{
	"Monday 2 January",
	"Monday, 2 January",
	"Mon 2 Jan",
	"Mon, 2 Jan",
	"2 January",
	"2 Jan",
	"January 2",
	"Jan 2",
}

// parseDayTitle reads a calendar day title. Titles without a year take the
// year that puts the date nearest after now.
func parseDayTitle(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(s) {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	for _, layout := range dayLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	for _, layout := range yearlessLayouts {
		t, err := time.ParseInLocation(layout, s, now.Location())
		if err != nil {
			continue
		}
		t = t.AddDate(now.Year()-t.Year(), 0, 0)
		if t.Before(today.AddDate(0, -6, 0)) {
			t = t.AddDate(1, 0, 0)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized calendar date %q", s)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
