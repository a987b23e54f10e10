package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/lecternhq/lectern/internal/errors"
	"github.com/lecternhq/lectern/internal/store"

	"gopkg.in/yaml.v3"
)

// Document is one parsed course file: catalog metadata plus per-lesson text.
type Document struct {
	Meta    store.CourseMeta
	Content []LessonContent
}

// LessonContent is the raw text of one lesson. Number is -1 for preamble text
// that appears before the first lesson marker.
type LessonContent struct {
	Number int
	Title  string
	Text   string
}

// Sidecar is an optional course.yaml next to the docs that overrides or fills
// in catalog metadata for courses whose files lack headers.
type Sidecar struct {
	Courses []SidecarCourse `yaml:"courses"`
}

type SidecarCourse struct {
	File       string `yaml:"file"`
	Title      string `yaml:"title"`
	Link       string `yaml:"link"`
	Instructor string `yaml:"instructor"`
}

var lessonMarker = regexp.MustCompile(`^Lesson (\d+):\s*(.*)$`)

// ParseFile reads a course document. The expected layout is a three-line
// header (Course Title / Course Link / Course Instructor) followed by lesson
// sections introduced by "Lesson N: <title>" lines, each optionally followed
// by a "Lesson Link:" line.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("parse %s", filepath.Base(path)))
	}

	// A file without a title header falls back to its base name, so a bare
	// text file still ingests under a usable catalog entry.
	if doc.Meta.Title == "" {
		doc.Meta.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

func Parse(r io.Reader) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &Document{}
	current := LessonContent{Number: -1}
	var body strings.Builder
	headerDone := false

	flush := func() {
		text := strings.TrimSpace(body.String())
		if text != "" || current.Number >= 0 {
			current.Text = text
			doc.Content = append(doc.Content, current)
		}
		body.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		if !headerDone {
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(trimmed, "Course Title:"):
				doc.Meta.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Title:"))
				continue
			case strings.HasPrefix(trimmed, "Course Link:"):
				doc.Meta.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Link:"))
				continue
			case strings.HasPrefix(trimmed, "Course Instructor:"):
				doc.Meta.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Instructor:"))
				continue
			case trimmed == "":
				continue
			default:
				headerDone = true
			}
		}

		if m := lessonMarker.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			num, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("bad lesson number in %q", line)
			}
			current = LessonContent{Number: num, Title: strings.TrimSpace(m[2])}
			doc.Meta.Lessons = append(doc.Meta.Lessons, store.Lesson{
				Number: num,
				Title:  strings.TrimSpace(m[2]),
			})
			continue
		}

		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "Lesson Link:") && current.Number >= 0 {
			link := strings.TrimSpace(strings.TrimPrefix(trimmed, "Lesson Link:"))
			for i := range doc.Meta.Lessons {
				if doc.Meta.Lessons[i].Number == current.Number {
					doc.Meta.Lessons[i].Link = link
				}
			}
			continue
		}

		body.WriteString(line)
		body.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return doc, nil
}

// LoadSidecar reads course.yaml from the docs directory. A missing file is
// not an error.
func LoadSidecar(docsPath string) (*Sidecar, error) {
	data, err := os.ReadFile(filepath.Join(docsPath, "course.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Sidecar{}, nil
		}
		return nil, err
	}

	var sc Sidecar
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "parse course.yaml")
	}
	return &sc, nil
}

// Apply overlays sidecar metadata onto a parsed document by file name.
func (sc *Sidecar) Apply(fileName string, doc *Document) {
	for _, c := range sc.Courses {
		if c.File != fileName {
			continue
		}
		if c.Title != "" {
			doc.Meta.Title = c.Title
		}
		if c.Link != "" {
			doc.Meta.Link = c.Link
		}
		if c.Instructor != "" {
			doc.Meta.Instructor = c.Instructor
		}
		return
	}
}
