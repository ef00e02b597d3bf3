package epd

import "testing"

func TestDerivePDFURL(t *testing.T) {
	tests := []struct {
		name      string
		sourceURI string
		id        string
		version   string
		want      string
	}{
		{
			name:      "with version",
			sourceURI: "https://data.x.org/resource/processes/ABC?x=1",
			id:        "ID1",
			version:   "2.0",
			want:      "https://data.x.org/resource/processes/ID1/epd?version=2.0",
		},
		{
			name:      "without version",
			sourceURI: "https://data.x.org/resource/processes/ABC?x=1",
			id:        "ID1",
			version:   "",
			want:      "https://data.x.org/resource/processes/ID1/epd",
		},
		{
			name:      "nested node path",
			sourceURI: "https://node.example.com/Node/resource/datastocks/42/processes/ABC",
			id:        "f1e2",
			version:   "01.00.000",
			want:      "https://node.example.com/Node/resource/processes/f1e2/epd?version=01.00.000",
		},
		{
			name:      "no resource segment",
			sourceURI: "https://data.x.org/",
			id:        "ID1",
			version:   "",
			want:      "https://data.x.org/resource/processes/ID1/epd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DerivePDFURL(tt.sourceURI, tt.id, tt.version)
			if got != tt.want {
				t.Errorf("DerivePDFURL() = %q, want %q", got, tt.want)
			}
			if again := DerivePDFURL(tt.sourceURI, tt.id, tt.version); again != got {
				t.Errorf("DerivePDFURL() not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestCleanURI(t *testing.T) {
	got := CleanURI("https://data.x.org/resource/ processes/A B")
	want := "https://data.x.org/resource/processes/AB"
	if got != want {
		t.Errorf("CleanURI() = %q, want %q", got, want)
	}
}
