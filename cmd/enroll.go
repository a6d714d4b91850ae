package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Bulk-enroll students from a CSV file",
	Long: `Bulk-enroll students into courses from a CSV file with rows of
external_code,display_name,course_id. Students unknown by external code
are registered first; existing enrollments are left untouched.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("file", "", "Path to the enrollment CSV file (required)")
	_ = enrollCmd.MarkFlagRequired("file")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	path := mustGetString(cmd, "file")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := roster.ParseCSV(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) == 0 {
		fmt.Println("Nothing to enroll")
		return nil
	}
	warnDuplicateNames(rows)

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	studentRepo := postgres.NewStudentRepository(pool)
	enrollmentRepo := postgres.NewEnrollmentRepository(pool)

	bar := progressbar.Default(int64(len(rows)), "enrolling")
	registered := 0
	for _, row := range rows {
		student, err := studentRepo.GetByExternalCode(ctx, row.ExternalCode)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", row.ExternalCode, err)
		}

		var studentID string
		if student != nil {
			studentID = student.StudentID
		} else {
			studentID, err = studentRepo.Register(ctx, row.ExternalCode, row.DisplayName)
			if err != nil {
				return fmt.Errorf("register %s: %w", row.ExternalCode, err)
			}
			registered++
		}

		if err := enrollmentRepo.Enroll(ctx, row.CourseID, studentID); err != nil {
			return fmt.Errorf("enroll %s in %s: %w", row.ExternalCode, row.CourseID, err)
		}
		_ = bar.Add(1)
	}

	fmt.Printf("Enrolled %d rows (%d new students)\n", len(rows), registered)
	return nil
}

// warnDuplicateNames flags rows whose names collapse to the same normalized
// form under different external codes, usually a sign of a typo in the file.
func warnDuplicateNames(rows []roster.Row) {
	seen := make(map[string]string) // normalized name -> external code
	for _, row := range rows {
		key := roster.NormalizeStudentName(row.DisplayName)
		if prev, ok := seen[key]; ok && prev != row.ExternalCode {
			fmt.Printf("Warning: %q (%s) and %s share the same normalized name\n",
				row.DisplayName, row.ExternalCode, prev)
			continue
		}
		seen[key] = row.ExternalCode
	}
}
