package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/certiquest/internal/catalog"
	"github.com/hyperjump/certiquest/internal/storage"
)

const seedYAML = `
users:
  - id: student-1
    email: ada@example.edu
    full_name: Ada Lovelace
    role: student
    interests: [Cloud Computing, Security]
  - id: faculty-1
    email: prof@example.edu
    full_name: Grace Hopper
    role: Faculty
certifications:
  - title: AWS Cloud Practitioner
    provider: Amazon
    link: https://aws.amazon.com/certification
    domain: Cloud Computing
    cost: 100
    deadline: "2026-12-31"
    description: Foundational cloud knowledge
    credibility: trusted
  - title: Free Git Basics
    provider: GitHub
    link: https://github.com
    domain: Software Engineering
    cost: 0
    deadline: rolling
    description: Version control fundamentals
  - title: Missing Everything
`

func newSink(t *testing.T) (*catalog.Service, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return catalog.NewService(store, store), store
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestImportFile_YAML(t *testing.T) {
	svc, store := newSink(t)
	imp := New(svc, nil)
	ctx := context.Background()
	path := writeFile(t, "seed.yaml", []byte(seedYAML))

	res, err := imp.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 2, res.UsersAdded)
	assert.Equal(t, 2, res.CertificationsAdded)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "certification 3")

	student, err := store.GetUser(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, "Student", student.Role)
	assert.Equal(t, []string{"Cloud Computing", "Security"}, student.Interests)

	certs, err := store.ListCertifications(ctx)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "AWS Cloud Practitioner", certs[0].Title)
	assert.Equal(t, "trusted", certs[0].Credibility)
	assert.Equal(t, float64(0), certs[1].Cost)

	// Re-importing the same file skips everything already present.
	res, err = imp.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, res.UsersAdded)
	assert.Equal(t, 2, res.UsersSkipped)
	assert.Equal(t, 2, res.CertificationsSkipped)
}

func TestImportFile_JSON(t *testing.T) {
	svc, store := newSink(t)
	imp := New(svc, nil)
	ctx := context.Background()

	bare := `[{"title":"CKA","provider":"CNCF","link":"https://cncf.io","domain":"Cloud Native",
		"cost":395,"deadline":"rolling","description":"Kubernetes administration"}]`
	res, err := imp.ImportFile(ctx, writeFile(t, "certs.json", []byte(bare)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.CertificationsAdded)

	wrapped := `{"users":[{"email":"x@y.z","fullName":"X","role":"Admin"}]}`
	res, err = imp.ImportFile(ctx, writeFile(t, "users.json", []byte(wrapped)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.UsersAdded)

	n, _ := store.CountUsers(ctx)
	assert.Equal(t, int64(1), n)
}

func TestImportPath_Directory(t *testing.T) {
	svc, store := newSink(t)
	imp := New(svc, nil)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(seedYAML), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "more"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "more", "certs.json"), []byte(`[{"title":"CKA","provider":"CNCF",
		"link":"https://cncf.io","domain":"Cloud Native","cost":395,"deadline":"rolling","description":"Kubernetes"}]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# not a seed"), 0644))

	results, err := imp.ImportPath(ctx, dir, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	n, _ := store.CountCertifications(ctx)
	assert.Equal(t, int64(3), n)

	// Restricting extensions skips the JSON file.
	svc2, _ := newSink(t)
	results, err = New(svc2, nil).ImportPath(ctx, dir, []string{".yaml"})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = imp.ImportPath(ctx, filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}

func TestImportFile_XLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Certifications"))
	require.NoError(t, f.SetSheetRow("Certifications", "A1", &[]interface{}{
		"Title", "Provider", "Link", "Domain", "Cost", "Deadline", "Description", "Faculty Verified",
	}))
	require.NoError(t, f.SetSheetRow("Certifications", "A2", &[]interface{}{
		"Google Data Analytics", "Google", "https://grow.google", "Data Science", "$1,200", "2026-06-30",
		"Spreadsheets,   SQL and Tableau", "yes",
	}))
	require.NoError(t, f.SetSheetRow("Certifications", "A3", &[]interface{}{
		"Intro to Python", "Coursera", "https://coursera.org", "Programming", "Free", "rolling", "Python basics",
	}))
	_, err := f.NewSheet("Users")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Users", "A1", &[]interface{}{"ID", "Email", "Full Name", "Role", "Interests", "Graduation Year"}))
	require.NoError(t, f.SetSheetRow("Users", "A2", &[]interface{}{"s-9", "s9@uni.edu", "Sam", "Student", "Data Science; Python", 2027}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	batch, err := ParseBytes(buf.Bytes(), ".xlsx")
	require.NoError(t, err)
	require.Len(t, batch.Certifications, 2)
	first := batch.Certifications[0]
	require.NotNil(t, first.Cost)
	assert.Equal(t, 1200.0, *first.Cost)
	assert.True(t, first.FacultyVerified)
	assert.Equal(t, "Spreadsheets, SQL and Tableau", first.Description)
	require.NotNil(t, batch.Certifications[1].Cost)
	assert.Equal(t, 0.0, *batch.Certifications[1].Cost)

	require.Len(t, batch.Users, 1)
	assert.Equal(t, "Sam", batch.Users[0].FullName)
	assert.Equal(t, []string{"Data Science", "Python"}, batch.Users[0].Interests)
	assert.Equal(t, 2027, batch.Users[0].GraduationYear)

	svc, _ := newSink(t)
	res, err := New(svc, nil).ImportBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CertificationsAdded)
	assert.Equal(t, 1, res.UsersAdded)
}

func TestParseBytes_Errors(t *testing.T) {
	_, err := ParseBytes([]byte("x"), ".csv")
	assert.Error(t, err)
	_, err = ParseBytes([]byte("{"), ".json")
	assert.Error(t, err)
	_, err = ParseFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseCost(t *testing.T) {
	for in, want := range map[string]float64{"Free": 0, "$1,200": 1200, "99.5": 99.5} {
		got, err := parseCost(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseCost("call us")
	assert.Error(t, err)
}
