package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/quranlearn/contentpipe/internal/models"
)

// Reader provides read-only access to the local content snapshot. The
// snapshot holds ayat, surahs and translations tables; verse text is never
// modified here.
type Reader struct {
	db   *sql.DB
	path string
}

// Open opens the snapshot at path. A missing file is an error: the snapshot
// is a build input, not something this pipeline creates.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapshot not found at %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}

	return &Reader{db: db, path: path}, nil
}

func (r *Reader) Close() error {
	return r.db.Close()
}

// Path returns the snapshot file path.
func (r *Reader) Path() string {
	return r.path
}

const seedQuery = `
	SELECT
		a.id,
		a.surah_id,
		a.ayah_number,
		a.text_uthmani,
		a.text_simple,
		a.juz_number,
		a.page_number,
		t_en.translated_text AS translation_en,
		t_id.translated_text AS translation_id
	FROM ayat a
	LEFT JOIN translations t_en ON a.id = t_en.ayah_id AND t_en.language = 'en'
	LEFT JOIN translations t_id ON a.id = t_id.ayah_id AND t_id.language = 'id'
	ORDER BY a.surah_id, a.ayah_number
`

// ReadVerses returns every verse with its joined translations, ordered by
// surah then position, the order the seeder uploads them in.
func (r *Reader) ReadVerses(ctx context.Context) ([]models.Verse, error) {
	rows, err := r.db.QueryContext(ctx, seedQuery)
	if err != nil {
		return nil, fmt.Errorf("querying verses: %w", err)
	}
	defer rows.Close()

	return scanVerses(rows, false)
}

const namedQuery = `
	SELECT
		a.id,
		a.surah_id,
		a.ayah_number,
		a.text_uthmani,
		a.text_simple,
		a.juz_number,
		a.page_number,
		s.name_english AS surah_name,
		t_en.translated_text AS translation_en,
		t_id.translated_text AS translation_id
	FROM ayat a
	JOIN surahs s ON a.surah_id = s.id
	LEFT JOIN translations t_en ON a.id = t_en.ayah_id AND t_en.language = 'en'
	LEFT JOIN translations t_id ON a.id = t_id.ayah_id AND t_id.language = 'id'
	ORDER BY a.id
`

// ReadNamedVerses returns every verse with its surah display name joined on,
// ordered by identifier. The generator builds prompts from this set.
func (r *Reader) ReadNamedVerses(ctx context.Context) ([]models.Verse, error) {
	rows, err := r.db.QueryContext(ctx, namedQuery)
	if err != nil {
		return nil, fmt.Errorf("querying named verses: %w", err)
	}
	defer rows.Close()

	return scanVerses(rows, true)
}

// Count returns the number of verse rows in the snapshot.
func (r *Reader) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ayat").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting verses: %w", err)
	}
	return count, nil
}

func scanVerses(rows *sql.Rows, named bool) ([]models.Verse, error) {
	var verses []models.Verse
	for rows.Next() {
		var v models.Verse
		var surahName, trEN, trID sql.NullString

		dest := []interface{}{
			&v.ID, &v.SurahID, &v.AyahNumber,
			&v.TextUthmani, &v.TextSimple,
			&v.JuzNumber, &v.PageNumber,
		}
		if named {
			dest = append(dest, &surahName)
		}
		dest = append(dest, &trEN, &trID)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning verse: %w", err)
		}

		v.SurahName = surahName.String
		v.TranslationEN = trEN.String
		v.TranslationID = trID.String
		verses = append(verses, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating verses: %w", err)
	}

	return verses, nil
}
