package db

import "testing"

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/relay?sslmode=disable", "pgx5://u:p@localhost:5432/relay?sslmode=disable"},
		{"postgresql://localhost/relay", "pgx5://localhost/relay"},
		{"pgx5://localhost/relay", "pgx5://localhost/relay"},
		{"localhost/relay", "pgx5://localhost/relay"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := MigrationURL(tt.in); got != tt.want {
				t.Fatalf("MigrationURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
