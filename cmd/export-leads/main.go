// export-leads выгружает заявки контактной формы в xlsx для команды.
//
// Использование:
//
//	export-leads -dsn "host=... user=... dbname=..." -out leads.xlsx [-all]
//
// По умолчанию выгружаются только подтвержденные заявки; флаг -all добавляет
// и неподтвержденные.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/xuri/excelize/v2"
)

type leadRow struct {
	ID          string
	Name        string
	Email       string
	Company     sql.NullString
	ProjectType sql.NullString
	Message     string
	Status      string
	CreatedAt   time.Time
	VerifiedAt  sql.NullTime
}

func main() {
	dsn := flag.String("dsn", "", "PostgreSQL connection string")
	out := flag.String("out", "leads.xlsx", "output xlsx file path")
	all := flag.Bool("all", false, "include unverified submissions")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("-dsn is required")
	}

	db, err := sql.Open("postgres", *dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	query := `
		SELECT id, name, email, company, project_type, message, status, created_at, verified_at
		FROM contact_submissions`
	if !*all {
		query += ` WHERE email_verified = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Query(query)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leads"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Name", "Email", "Company", "Project Type", "Message", "Status", "Created At", "Verified At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	count := 0
	for rows.Next() {
		var r leadRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Company, &r.ProjectType, &r.Message, &r.Status, &r.CreatedAt, &r.VerifiedAt); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}

		verifiedAt := ""
		if r.VerifiedAt.Valid {
			verifiedAt = r.VerifiedAt.Time.Format(time.RFC3339)
		}

		values := []interface{}{
			r.ID, r.Name, r.Email, r.Company.String, r.ProjectType.String,
			r.Message, r.Status, r.CreatedAt.Format(time.RFC3339), verifiedAt,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, count+2)
			f.SetCellValue(sheet, cell, v)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Rows iteration failed: %v", err)
	}

	if err := f.SaveAs(*out); err != nil {
		log.Fatalf("Failed to save %s: %v", *out, err)
	}

	fmt.Printf("Exported %d submissions to %s\n", count, *out)
}
