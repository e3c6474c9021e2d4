package database

import (
	"io/fs"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEmbeddedMigrations(t *testing.T) {
	Convey("Given the embedded migration set", t, func() {
		entries, err := fs.ReadDir(migrationFiles, "migrations")
		So(err, ShouldBeNil)

		Convey("Every up migration has a matching down migration", func() {
			ups := map[string]bool{}
			downs := map[string]bool{}
			for _, e := range entries {
				name := e.Name()
				switch {
				case strings.HasSuffix(name, ".up.sql"):
					ups[strings.TrimSuffix(name, ".up.sql")] = true
				case strings.HasSuffix(name, ".down.sql"):
					downs[strings.TrimSuffix(name, ".down.sql")] = true
				}
			}
			So(len(ups), ShouldBeGreaterThan, 0)
			So(ups, ShouldResemble, downs)
		})

		Convey("The session table is created", func() {
			body, err := fs.ReadFile(migrationFiles, "migrations/000001_haptic_sessions.up.sql")
			So(err, ShouldBeNil)
			So(string(body), ShouldContainSubstring, "CREATE TABLE IF NOT EXISTS haptic_sessions")
			So(string(body), ShouldContainSubstring, "cleanup_old_sessions")
		})
	})
}
