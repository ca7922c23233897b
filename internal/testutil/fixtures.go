// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"encoding/csv"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/aanand-mishra/churn-api/internal/types"
	"github.com/stretchr/testify/require"
)

// Header is the column layout of the reference churn dataset.
var Header = []string{
	"RowNumber", "CustomerId", "Surname", "CreditScore", "Geography", "Gender",
	"Age", "Tenure", "Balance", "NumOfProducts", "HasCrCard", "IsActiveMember",
	"EstimatedSalary", "Exited",
}

// ReferenceCustomer is the example payload used across the API tests.
var ReferenceCustomer = types.CustomerRecord{
	CreditScore:     600,
	Geography:       "France",
	Gender:          "Female",
	Age:             40,
	Tenure:          3,
	Balance:         0.0,
	NumOfProducts:   2,
	HasCrCard:       1,
	IsActiveMember:  1,
	EstimatedSalary: 50000.0,
}

var (
	geographies = []string{"France", "Germany", "Spain"}
	genders     = []string{"Female", "Male"}
	surnames    = []string{"Hargrave", "Hill", "Onio", "Boni", "Mitchell"}
)

// ChurnLabel is the rule the synthetic rows are labelled with: older
// customers and inactive German customers churn.
func ChurnLabel(geography string, age, isActive int) int {
	if age > 50 || (geography == "Germany" && isActive == 0) {
		return 1
	}
	return 0
}

// ChurnRows generates n deterministic rows (header excluded) in the
// reference layout.
func ChurnRows(n int, seed int64) [][]string {
	rnd := rand.New(rand.NewSource(seed))
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		geo := geographies[rnd.Intn(len(geographies))]
		age := 18 + rnd.Intn(60)
		active := rnd.Intn(2)
		rows[i] = []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(15600000 + i),
			surnames[rnd.Intn(len(surnames))],
			strconv.Itoa(350 + rnd.Intn(500)),
			geo,
			genders[rnd.Intn(len(genders))],
			strconv.Itoa(age),
			strconv.Itoa(rnd.Intn(11)),
			strconv.FormatFloat(float64(rnd.Intn(2))*rnd.Float64()*200000, 'f', 2, 64),
			strconv.Itoa(1 + rnd.Intn(4)),
			strconv.Itoa(rnd.Intn(2)),
			strconv.Itoa(active),
			strconv.FormatFloat(rnd.Float64()*200000, 'f', 2, 64),
			strconv.Itoa(ChurnLabel(geo, age, active)),
		}
	}
	return rows
}

// WriteCSV writes header and rows to name inside dir and returns the path.
func WriteCSV(t *testing.T, dir, name string, header []string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(header))
	require.NoError(t, w.WriteAll(rows))
	return path
}

// WriteChurnCSV writes n synthetic reference-layout rows and returns the
// file path.
func WriteChurnCSV(t *testing.T, dir string, n int) string {
	t.Helper()
	return WriteCSV(t, dir, "churn.csv", Header, ChurnRows(n, 7))
}
