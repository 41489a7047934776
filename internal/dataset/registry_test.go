package dataset

import "testing"

func TestInferType(t *testing.T) {
	tests := []struct {
		header string
		want   FieldType
	}{
		{header: "Factuurdatum", want: TypeDate},
		{header: "DATUM ontvangst", want: TypeDate},
		{header: "Waarde", want: TypeCurrency},
		{header: "Document URL", want: TypeLink},
		{header: "Aantal stuks", want: TypeNumber},
		{header: "Leverancier", want: TypeString},
		// A date token wins over a currency token
		{header: "Waarde datum", want: TypeDate},
		// A currency token wins over a link token
		{header: "waarde url", want: TypeCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := InferType(tt.header); got != tt.want {
				t.Errorf("InferType(%q) = %s, want %s", tt.header, got, tt.want)
			}
		})
	}
}

func TestInferDescriptors(t *testing.T) {
	headers := []string{"Datum", "Leverancier", "Aantal"}
	descs := InferDescriptors(headers)

	if len(descs) != 3 {
		t.Fatalf("len(descs) = %d, want 3", len(descs))
	}
	for i, d := range descs {
		if d.SourceName != headers[i] || d.DisplayName != headers[i] {
			t.Errorf("descs[%d] names = (%q, %q), want both %q", i, d.SourceName, d.DisplayName, headers[i])
		}
	}
	if descs[0].Type != TypeDate || descs[1].Type != TypeString || descs[2].Type != TypeNumber {
		t.Errorf("inferred types = [%s %s %s]", descs[0].Type, descs[1].Type, descs[2].Type)
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry([]ColumnDescriptor{
		{SourceName: "A", DisplayName: "Alpha", Type: TypeNumber},
		{SourceName: "B", DisplayName: "Beta", Type: TypeDate},
	})

	d, ok := reg.Lookup("Beta")
	if !ok || d.SourceName != "B" {
		t.Errorf("Lookup(Beta) = (%+v, %v)", d, ok)
	}
	if _, ok := reg.Lookup("Gamma"); ok {
		t.Error("Lookup(Gamma) found a descriptor that was never registered")
	}

	if got := reg.TypeOf("Alpha"); got != TypeNumber {
		t.Errorf("TypeOf(Alpha) = %s, want %s", got, TypeNumber)
	}
	if got := reg.TypeOf("Gamma"); got != TypeString {
		t.Errorf("TypeOf(Gamma) = %s, want string fallback", got)
	}
}

func TestRegistryDuplicateDisplayNameLaterWins(t *testing.T) {
	reg := NewRegistry([]ColumnDescriptor{
		{SourceName: "A", DisplayName: "X", Type: TypeNumber},
		{SourceName: "B", DisplayName: "X", Type: TypeDate},
	})

	if got := reg.TypeOf("X"); got != TypeDate {
		t.Errorf("TypeOf(X) = %s, want the later descriptor's type", got)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (sequence keeps both)", reg.Len())
	}
}

func TestRegistryExtend(t *testing.T) {
	reg := NewRegistry([]ColumnDescriptor{
		{SourceName: "A", DisplayName: "A", Type: TypeNumber},
	})

	if !reg.Extend("AI_Status") {
		t.Error("Extend on a new name reported no change")
	}
	if reg.Extend("AI_Status") {
		t.Error("Extend on an existing name must be a no-op")
	}
	if reg.Extend("A") {
		t.Error("Extend on a mapped column must be a no-op")
	}

	d, ok := reg.Lookup("AI_Status")
	if !ok {
		t.Fatal("extended field missing from lookup")
	}
	if d.Type != TypeString {
		t.Errorf("extended field type = %s, want string", d.Type)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}

func TestRegistryDescriptorsIsACopy(t *testing.T) {
	reg := NewRegistry([]ColumnDescriptor{
		{SourceName: "A", DisplayName: "A", Type: TypeNumber},
	})

	descs := reg.Descriptors()
	descs[0].DisplayName = "mutated"

	if d, _ := reg.Lookup("A"); d.DisplayName != "A" {
		t.Error("mutating the returned slice changed the registry")
	}
}
