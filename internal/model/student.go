package model

// Standard class-standing labels. Year is free text, these are only the usual values.
var Years = []string{"1st", "2nd", "3rd", "4th"}

const DefaultYear = "1st"

type Student struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Roll   string   `json:"roll"`
	Email  string   `json:"email"`
	Year   string   `json:"year"`
	Branch string   `json:"branch"`
	CGPA   *float64 `json:"cgpa"` // nil when not set, encoded as null
}

// StudentInput holds the editable fields of a Student.
type StudentInput struct {
	Name   string   `json:"name"`
	Roll   string   `json:"roll"`
	Email  string   `json:"email"`
	Year   string   `json:"year"`
	Branch string   `json:"branch"`
	CGPA   *float64 `json:"cgpa"`
}

func (in StudentInput) ToStudent(id string) Student {
	return Student{
		ID:     id,
		Name:   in.Name,
		Roll:   in.Roll,
		Email:  in.Email,
		Year:   in.Year,
		Branch: in.Branch,
		CGPA:   cloneFloat(in.CGPA),
	}
}

func (s Student) Input() StudentInput {
	return StudentInput{
		Name:   s.Name,
		Roll:   s.Roll,
		Email:  s.Email,
		Year:   s.Year,
		Branch: s.Branch,
		CGPA:   cloneFloat(s.CGPA),
	}
}

// Clone returns a deep copy so callers can't reach the stored cgpa pointer.
func (s Student) Clone() Student {
	s.CGPA = cloneFloat(s.CGPA)
	return s
}

// CGPAValue returns the cgpa, or 0 when it is not set.
func (s Student) CGPAValue() float64 {
	if s.CGPA == nil {
		return 0
	}
	return *s.CGPA
}

func Float(v float64) *float64 {
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func CloneStudents(students []Student) []Student {
	out := make([]Student, len(students))
	for i, s := range students {
		out[i] = s.Clone()
	}
	return out
}
