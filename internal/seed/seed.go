// Package seed populates a fresh database with sample STEM center data:
// users, inventory, suppliers, and indexed lesson plans. Fixtures ship
// embedded; a custom YAML file can be supplied instead.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"stemchat/internal/auth"
	"stemchat/internal/domain"
	"stemchat/internal/index"
	"stemchat/internal/store"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type userFixture struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type itemFixture struct {
	Name        string  `yaml:"name"`
	Category    string  `yaml:"category"`
	Description string  `yaml:"description"`
	Quantity    float64 `yaml:"quantity"`
	Unit        string  `yaml:"unit"`
	MinQuantity float64 `yaml:"min_quantity"`
	Location    string  `yaml:"location"`
}

type supplierFixture struct {
	Name         string  `yaml:"name"`
	ItemName     string  `yaml:"item_name"`
	ContactInfo  string  `yaml:"contact_info"`
	OrderURL     string  `yaml:"order_url"`
	PricePerUnit float64 `yaml:"price_per_unit"`
	LeadTimeDays int     `yaml:"lead_time_days"`
	Notes        string  `yaml:"notes"`
}

type lessonFixture struct {
	Filename string `yaml:"filename"`
	Subject  string `yaml:"subject"`
	Grade    int    `yaml:"grade"`
	Content  string `yaml:"content"`
}

type fixtures struct {
	Users     []userFixture     `yaml:"users"`
	Items     []itemFixture     `yaml:"items"`
	Suppliers []supplierFixture `yaml:"suppliers"`
	Lessons   []lessonFixture   `yaml:"lessons"`
}

// Summary reports what a seeding run created.
type Summary struct {
	Users     int
	Items     int
	Suppliers int
	Lessons   int
}

type Seeder struct {
	store  *store.Store
	index  *index.Index
	logger *slog.Logger
}

func New(st *store.Store, ix *index.Index, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: st, index: ix, logger: logger}
}

// Run seeds from the given YAML file, or from the embedded fixtures when
// path is empty. Existing users are skipped; items and suppliers are
// inserted as-is.
func (s *Seeder) Run(ctx context.Context, path string) (Summary, error) {
	data := defaultFixtures
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Summary{}, fmt.Errorf("read fixtures: %w", err)
		}
	}

	var fx fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Summary{}, fmt.Errorf("parse fixtures: %w", err)
	}

	var sum Summary
	sess := s.store.Session()

	for _, u := range fx.Users {
		existing, err := sess.GetUserByUsername(ctx, u.Username)
		if err != nil {
			return sum, err
		}
		if existing != nil {
			s.logger.Info("user already exists, skipping", "username", u.Username)
			continue
		}
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return sum, err
		}
		if _, err := sess.CreateUser(ctx, u.Username, hash); err != nil {
			return sum, err
		}
		sum.Users++
	}

	for _, it := range fx.Items {
		_, err := sess.CreateItem(ctx, domain.InventoryItem{
			Name:        it.Name,
			Category:    it.Category,
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			MinQuantity: it.MinQuantity,
			Location:    it.Location,
		}, "Initial inventory setup", nil)
		if err != nil {
			return sum, fmt.Errorf("seed item %q: %w", it.Name, err)
		}
		sum.Items++
	}

	for _, sp := range fx.Suppliers {
		_, err := sess.CreateSupplier(ctx, domain.Supplier{
			Name:         sp.Name,
			ItemName:     sp.ItemName,
			ContactInfo:  sp.ContactInfo,
			OrderURL:     sp.OrderURL,
			PricePerUnit: sp.PricePerUnit,
			LeadTimeDays: sp.LeadTimeDays,
			Notes:        sp.Notes,
		})
		if err != nil {
			return sum, fmt.Errorf("seed supplier %q: %w", sp.Name, err)
		}
		sum.Suppliers++
	}

	if s.index != nil {
		for _, l := range fx.Lessons {
			if _, err := s.index.AddDocument(ctx, l.Filename, l.Subject, l.Grade, l.Content); err != nil {
				return sum, fmt.Errorf("index lesson %q: %w", l.Filename, err)
			}
			sum.Lessons++
		}
	}

	s.logger.Info("seeding complete",
		"users", sum.Users, "items", sum.Items,
		"suppliers", sum.Suppliers, "lessons", sum.Lessons)
	return sum, nil
}

var gradeRe = regexp.MustCompile(`(?i)grade(\d+)`)

var knownSubjects = []string{"biology", "chemistry", "physics", "math", "science", "english", "history"}

// MetadataFromFilename derives subject and grade from names like
// "Grade7_Biology_Photosynthesis.md".
func MetadataFromFilename(filename string) (subject string, grade int) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.NewReplacer("-", "_", " ", "_").Replace(name)
	for _, part := range strings.Split(name, "_") {
		if m := gradeRe.FindStringSubmatch(part); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				grade = n
			}
			continue
		}
		for _, subj := range knownSubjects {
			if strings.EqualFold(part, subj) {
				subject = part
			}
		}
	}
	return subject, grade
}

// IndexDir indexes every .txt and .md file in dir as a lesson plan, with
// metadata derived from the filename.
func (s *Seeder) IndexDir(ctx context.Context, dir string) (int, error) {
	if s.index == nil {
		return 0, fmt.Errorf("no index configured")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return indexed, err
		}
		subject, grade := MetadataFromFilename(e.Name())
		if _, err := s.index.AddDocument(ctx, e.Name(), subject, grade, string(content)); err != nil {
			return indexed, fmt.Errorf("index %q: %w", e.Name(), err)
		}
		s.logger.Info("indexed lesson plan", "file", e.Name(), "subject", subject, "grade", grade)
		indexed++
	}
	return indexed, nil
}
