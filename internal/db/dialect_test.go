package db

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type likeRow struct {
	ID   uint64 `gorm:"primaryKey"`
	Name string
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if got := ContainsPattern(conn, " 50%_Off "); got != `%50\%\_off%` {
		t.Fatalf("pattern = %q", got)
	}
	if got := CaseInsensitiveLikeExpr(conn, "name"); got != `LOWER(name) LIKE ? ESCAPE '\'` {
		t.Fatalf("expr = %q", got)
	}
}

func TestCaseInsensitiveLikeSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:dialect_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&likeRow{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	rows := []likeRow{{Name: "Sale 50% Off"}, {Name: "Sale 50 Off"}, {Name: "under_score"}, {Name: "underXscore"}}
	if errCreate := conn.Create(&rows).Error; errCreate != nil {
		t.Fatalf("seed: %v", errCreate)
	}

	cases := []struct {
		term string
		want []string
	}{
		{term: "50%", want: []string{"Sale 50% Off"}},
		{term: "SALE", want: []string{"Sale 50% Off", "Sale 50 Off"}},
		{term: "r_s", want: []string{"under_score"}},
	}
	for _, tc := range cases {
		var got []likeRow
		errFind := conn.Where(CaseInsensitiveLikeExpr(conn, "name"), ContainsPattern(conn, tc.term)).
			Order("id ASC").Find(&got).Error
		if errFind != nil {
			t.Fatalf("search %q: %v", tc.term, errFind)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("search %q matched %d rows, want %d", tc.term, len(got), len(tc.want))
		}
		for i := range got {
			if got[i].Name != tc.want[i] {
				t.Fatalf("search %q row %d = %q, want %q", tc.term, i, got[i].Name, tc.want[i])
			}
		}
	}
}
