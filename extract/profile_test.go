package extract

import "testing"

func TestProfile(t *testing.T) {
	html := `<html><body>
		<h1 class="text-heading-xlarge">Jane Doe</h1>
		<span class="text-body-small">Remote</span>
	</body></html>`

	fields, err := Profile(html)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if fields.Name != "Jane Doe" {
		t.Errorf("Name = %q, want %q", fields.Name, "Jane Doe")
	}
	if fields.Location != "Remote" {
		t.Errorf("Location = %q, want %q", fields.Location, "Remote")
	}
	if !fields.Complete() {
		t.Error("fields should be complete")
	}
}

func TestProfile_MissingElements(t *testing.T) {
	fields, err := Profile(`<html><body><p>nothing useful</p></body></html>`)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if fields.Name != "" || fields.Location != "" {
		t.Errorf("fields = %+v, want empty", fields)
	}
	if fields.Complete() {
		t.Error("empty fields must not be complete")
	}
}

func TestProfile_TrimsWhitespace(t *testing.T) {
	html := `<html><body>
		<h1 class="text-heading-xlarge">
			Jane Doe
		</h1>
		<span class="text-body-small"> Remote </span>
	</body></html>`

	fields, err := Profile(html)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if fields.Name != "Jane Doe" {
		t.Errorf("Name = %q, want trimmed %q", fields.Name, "Jane Doe")
	}
	if fields.Location != "Remote" {
		t.Errorf("Location = %q, want trimmed %q", fields.Location, "Remote")
	}
}

func TestProfile_FirstMatchWins(t *testing.T) {
	html := `<html><body>
		<h1 class="text-heading-xlarge">Jane Doe</h1>
		<h1 class="text-heading-xlarge">Someone Else</h1>
		<span class="text-body-small">Remote</span>
		<span class="text-body-small">500 connections</span>
	</body></html>`

	fields, err := Profile(html)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if fields.Name != "Jane Doe" {
		t.Errorf("Name = %q, want first match %q", fields.Name, "Jane Doe")
	}
	if fields.Location != "Remote" {
		t.Errorf("Location = %q, want first match %q", fields.Location, "Remote")
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		first string
		last  string
	}{
		{"two tokens", "Jane Doe", "Jane", "Doe"},
		{"single token", "Madonna", "Madonna", ""},
		{"three tokens split on first space", "Mary Jane Watson", "Mary", "Jane Watson"},
		{"surrounding whitespace", "  Jane Doe  ", "Jane", "Doe"},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := SplitName(tt.in)
			if first != tt.first || last != tt.last {
				t.Errorf("SplitName(%q) = (%q, %q), want (%q, %q)",
					tt.in, first, last, tt.first, tt.last)
			}
		})
	}
}
