package gamedata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
)

// Load reads every table for the given language from dir/<lang>/*.csv.
// All files must parse; a bad row fails the whole load so a half-translated
// language never goes live.
func Load(dir, lang string) (*Bundle, error) {
	root := filepath.Join(dir, lang)
	b := &Bundle{Language: lang, RegionNames: make(map[string][]string)}

	type table struct {
		file string
		fn   func(row []string, line int) error
	}
	tables := []table{
		{"sects.csv", func(row []string, line int) error {
			if len(row) < 3 {
				return fmt.Errorf("want 3 columns")
			}
			b.Sects = append(b.Sects, SectInfo{ID: row[0], Name: row[1], Description: row[2]})
			return nil
		}},
		{"personas.csv", func(row []string, line int) error {
			if len(row) < 3 {
				return fmt.Errorf("want 3 columns")
			}
			b.Personas = append(b.Personas, Persona{ID: row[0], Name: row[1], Description: row[2]})
			return nil
		}},
		{"techniques.csv", func(row []string, line int) error {
			if len(row) < 5 {
				return fmt.Errorf("want 5 columns")
			}
			realm, ok := cultivation.RealmFromKey(row[2])
			if !ok {
				return fmt.Errorf("unknown realm %q", row[2])
			}
			factor, err := strconv.ParseFloat(row[3], 64)
			if err != nil {
				return fmt.Errorf("exp_factor: %w", err)
			}
			b.Techniques = append(b.Techniques, Technique{
				ID: row[0], Name: row[1], Realm: realm, ExpFactor: factor, Description: row[4],
			})
			return nil
		}},
		{"weapons.csv", func(row []string, line int) error {
			if len(row) < 5 {
				return fmt.Errorf("want 5 columns")
			}
			realm, ok := cultivation.RealmFromKey(row[2])
			if !ok {
				return fmt.Errorf("unknown realm %q", row[2])
			}
			attack, err := strconv.Atoi(row[3])
			if err != nil {
				return fmt.Errorf("attack: %w", err)
			}
			b.Weapons = append(b.Weapons, Weapon{
				ID: row[0], Name: row[1], Realm: realm, Attack: attack, Description: row[4],
			})
			return nil
		}},
		{"auxiliaries.csv", func(row []string, line int) error {
			if len(row) < 6 {
				return fmt.Errorf("want 6 columns")
			}
			realm, ok := cultivation.RealmFromKey(row[2])
			if !ok {
				return fmt.Errorf("unknown realm %q", row[2])
			}
			defense, err := strconv.Atoi(row[3])
			if err != nil {
				return fmt.Errorf("defense: %w", err)
			}
			factor, err := strconv.ParseFloat(row[4], 64)
			if err != nil {
				return fmt.Errorf("cultivation_factor: %w", err)
			}
			b.Auxiliaries = append(b.Auxiliaries, Auxiliary{
				ID: row[0], Name: row[1], Realm: realm,
				Defense: defense, CultivationFactor: factor, Description: row[5],
			})
			return nil
		}},
		{"elixirs.csv", func(row []string, line int) error {
			if len(row) < 7 {
				return fmt.Errorf("want 7 columns")
			}
			realm, ok := cultivation.RealmFromKey(row[2])
			if !ok {
				return fmt.Errorf("unknown realm %q", row[2])
			}
			kind := ElixirKind(row[3])
			if kind != ElixirHeal && kind != ElixirExp {
				return fmt.Errorf("unknown elixir kind %q", row[3])
			}
			amount, err := strconv.Atoi(row[4])
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			duration, err := strconv.Atoi(row[5])
			if err != nil || duration < 0 {
				return fmt.Errorf("duration_months: bad value %q", row[5])
			}
			b.Elixirs = append(b.Elixirs, Elixir{
				ID: row[0], Name: row[1], Realm: realm, Kind: kind,
				Amount: amount, DurationMonths: duration, Description: row[6],
			})
			return nil
		}},
		{"fortunes.csv", func(row []string, line int) error {
			e, err := parseFortune(row)
			if err != nil {
				return err
			}
			b.Fortunes = append(b.Fortunes, e)
			return nil
		}},
		{"misfortunes.csv", func(row []string, line int) error {
			e, err := parseFortune(row)
			if err != nil {
				return err
			}
			b.Misfortunes = append(b.Misfortunes, e)
			return nil
		}},
		{"phenomena.csv", func(row []string, line int) error {
			if len(row) < 7 {
				return fmt.Errorf("want 7 columns")
			}
			years, err := strconv.Atoi(row[2])
			if err != nil || years <= 0 {
				return fmt.Errorf("years: bad value %q", row[2])
			}
			cf, err := strconv.ParseFloat(row[3], 64)
			if err != nil {
				return fmt.Errorf("cultivation_factor: %w", err)
			}
			bb, err := strconv.ParseFloat(row[4], 64)
			if err != nil {
				return fmt.Errorf("breakthrough_bonus: %w", err)
			}
			weight, err := strconv.ParseFloat(row[5], 64)
			if err != nil {
				return fmt.Errorf("weight: %w", err)
			}
			b.Phenomena = append(b.Phenomena, PhenomenonEntry{
				Key: row[0], Name: row[1], Years: years,
				CultivationFactor: cf, BreakthroughBonus: bb,
				Weight: weight, Description: row[6],
			})
			return nil
		}},
		{"names.csv", func(row []string, line int) error {
			if len(row) < 2 {
				return fmt.Errorf("want 2 columns")
			}
			switch row[0] {
			case "surname":
				b.Surnames = append(b.Surnames, row[1])
			case "male":
				b.MaleNames = append(b.MaleNames, row[1])
			case "female":
				b.FemaleNames = append(b.FemaleNames, row[1])
			default:
				return fmt.Errorf("unknown name kind %q", row[0])
			}
			return nil
		}},
		{"regions.csv", func(row []string, line int) error {
			if len(row) < 2 {
				return fmt.Errorf("want 2 columns")
			}
			b.RegionNames[row[0]] = append(b.RegionNames[row[0]], row[1])
			return nil
		}},
	}

	for _, t := range tables {
		if err := loadCSV(filepath.Join(root, t.file), t.fn); err != nil {
			return nil, fmt.Errorf("gamedata %s/%s: %w", lang, t.file, err)
		}
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("gamedata %s: %w", lang, err)
	}
	if err := b.buildIndexes(); err != nil {
		return nil, fmt.Errorf("gamedata %s: %w", lang, err)
	}
	return b, nil
}

func parseFortune(row []string) (FortuneEntry, error) {
	if len(row) < 4 {
		return FortuneEntry{}, fmt.Errorf("want 4 columns")
	}
	weight, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return FortuneEntry{}, fmt.Errorf("weight: %w", err)
	}
	return FortuneEntry{ID: row[0], Kind: row[1], Weight: weight, Text: row[3]}, nil
}

// loadCSV streams a file through fn, skipping the header row.
func loadCSV(path string, fn func(row []string, line int) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return err
	}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) == 0 {
			continue
		}
		if err := fn(row, i+1); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

func (b *Bundle) validate() error {
	if len(b.Sects) == 0 {
		return fmt.Errorf("no sects defined")
	}
	if len(b.Personas) == 0 {
		return fmt.Errorf("no personas defined")
	}
	if len(b.Surnames) == 0 || len(b.MaleNames) == 0 || len(b.FemaleNames) == 0 {
		return fmt.Errorf("incomplete name pools")
	}
	if len(b.Phenomena) == 0 {
		return fmt.Errorf("no phenomena defined")
	}
	return nil
}
