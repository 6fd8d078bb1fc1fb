package cv

import (
	"errors"
	"reflect"
	"testing"
)

func TestAddAppendsBlankEntry(t *testing.T) {
	for _, section := range CollectionSections {
		t.Run(string(section), func(t *testing.T) {
			d := New()
			for i := 0; i < 3; i++ {
				if err := d.Add(section); err != nil {
					t.Fatalf("add: %v", err)
				}
			}
			if got := d.Len(section); got != 3 {
				t.Fatalf("len = %d, want 3", got)
			}
		})
	}

	d := New()
	_ = d.Add(SectionExperience)
	if d.Experience[0].Achievements == nil {
		t.Fatal("achievements should default to an empty, non-nil list")
	}
	if d.Experience[0].CurrentlyWorking {
		t.Fatal("currentlyWorking should default to false")
	}
}

func TestAddRejectsPersonalAndUnknown(t *testing.T) {
	d := New()
	if err := d.Add(SectionPersonal); !errors.Is(err, ErrNotCollection) {
		t.Fatalf("expected ErrNotCollection, got %v", err)
	}
	if err := d.Add(Section("hobbies")); !errors.Is(err, ErrUnknownSection) {
		t.Fatalf("expected ErrUnknownSection, got %v", err)
	}
}

func TestUpdateSetsOneField(t *testing.T) {
	d := New()
	_ = d.Add(SectionEducation)
	_ = d.Add(SectionEducation)

	if err := d.Update(SectionEducation, 1, "institution", "MIT"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := d.Update(SectionEducation, 1, "currentlyStudying", true); err != nil {
		t.Fatalf("update bool: %v", err)
	}

	if d.Education[1].Institution != "MIT" || !d.Education[1].CurrentlyStudying {
		t.Fatalf("unexpected entry: %+v", d.Education[1])
	}
	if !reflect.DeepEqual(d.Education[0], Education{}) {
		t.Fatalf("entry 0 changed: %+v", d.Education[0])
	}
}

func TestUpdateAchievementsCopiesSlice(t *testing.T) {
	d := New()
	_ = d.Add(SectionExperience)

	list := []string{"shipped v1"}
	if err := d.Update(SectionExperience, 0, "achievements", list); err != nil {
		t.Fatalf("update: %v", err)
	}
	list[0] = "mutated"
	if got := d.Experience[0].Achievements[0]; got != "shipped v1" {
		t.Fatalf("achievements aliased caller slice: %q", got)
	}
}

func TestUpdateErrors(t *testing.T) {
	d := New()
	_ = d.Add(SectionSkills)

	tests := []struct {
		name  string
		index int
		field string
		value any
		want  error
	}{
		{name: "negative index", index: -1, field: "name", value: "Go", want: ErrIndexOutOfRange},
		{name: "index past end", index: 1, field: "name", value: "Go", want: ErrIndexOutOfRange},
		{name: "unknown field", index: 0, field: "rating", value: "5", want: ErrUnknownField},
		{name: "wrong type", index: 0, field: "name", value: 42, want: ErrFieldType},
		{name: "nil value", index: 0, field: "name", value: nil, want: ErrFieldType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := d.Clone()
			err := d.Update(SectionSkills, tt.index, tt.field, tt.value)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !reflect.DeepEqual(before, d) {
				t.Fatal("failed update must not change the document")
			}
		})
	}
}

func TestRemoveShiftsFollowingEntries(t *testing.T) {
	d := New()
	for i := 0; i < 3; i++ {
		_ = d.Add(SectionExperience)
	}
	_ = d.Update(SectionExperience, 0, "company", "A")
	_ = d.Update(SectionExperience, 1, "company", "B")
	_ = d.Update(SectionExperience, 2, "company", "C")
	_ = d.Update(SectionExperience, 2, "achievements", []string{"c1", "c2"})

	first, third := d.Experience[0], d.Clone().Experience[2]

	if err := d.Remove(SectionExperience, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(d.Experience) != 2 {
		t.Fatalf("len = %d, want 2", len(d.Experience))
	}
	if !reflect.DeepEqual(d.Experience[0], first) {
		t.Fatalf("entry 0 changed: %+v", d.Experience[0])
	}
	if !reflect.DeepEqual(d.Experience[1], third) {
		t.Fatalf("entry 2 not shifted intact: %+v", d.Experience[1])
	}
}

func TestRemoveOutOfRange(t *testing.T) {
	d := New()
	if err := d.Remove(SectionReferences, 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestAddRemoveLengthInvariant(t *testing.T) {
	ops := []struct {
		add   bool
		index int
	}{
		{add: true}, {add: true}, {add: true}, {index: 0}, {add: true}, {index: 2}, {index: 0}, {add: true},
	}
	for _, section := range CollectionSections {
		d := New()
		adds, removes := 0, 0
		for _, op := range ops {
			if op.add {
				_ = d.Add(section)
				adds++
				continue
			}
			if err := d.Remove(section, op.index); err != nil {
				t.Fatalf("%s remove %d: %v", section, op.index, err)
			}
			removes++
		}
		if got := d.Len(section); got != adds-removes {
			t.Fatalf("%s len = %d, want %d", section, got, adds-removes)
		}
	}
}

func TestSetPersonalFieldIdempotent(t *testing.T) {
	once := New()
	twice := New()

	if err := once.SetPersonalField("name", "Jane Doe"); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = twice.SetPersonalField("name", "Jane Doe")
	_ = twice.SetPersonalField("name", "Jane Doe")

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("documents differ: %+v vs %+v", once.Personal, twice.Personal)
	}
	if err := once.SetPersonalField("profileImage", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("profileImage must not be settable as text, got %v", err)
	}
}
