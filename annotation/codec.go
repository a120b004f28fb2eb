package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Marshal encodes anns as a JSON array; each element carries its "type".
func Marshal(anns []Annotation) ([]byte, error) {
	if anns == nil {
		anns = []Annotation{}
	}
	return json.Marshal(anns)
}

// Unmarshal decodes a JSON array produced by Marshal.
func Unmarshal(data []byte) ([]Annotation, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	out := make([]Annotation, 0, len(raws))
	for i, raw := range raws {
		a, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Decode parses a single annotation object.
func Decode(raw []byte) (Annotation, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode annotation: %w", err)
	}
	a, err := New(head.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, fmt.Errorf("decode %s annotation: %w", head.Type, err)
	}
	return a, nil
}

// New returns an empty record of the concrete type backing t.
func New(t Type) (Annotation, error) {
	var a Annotation
	switch t {
	case TypeText:
		a = &TextAnnotation{}
	case TypeDraw:
		a = &DrawAnnotation{}
	case TypeShape:
		a = &ShapeAnnotation{}
	case TypeSignature, TypeImage:
		a = &ImageAnnotation{}
	case TypeStamp:
		a = &StampAnnotation{}
	case TypeForm:
		a = &FormAnnotation{}
	case TypeHighlight, TypeStrikethrough, TypeUnderline:
		a = &MarkupAnnotation{}
	case TypeStickyNote:
		a = &NoteAnnotation{}
	case TypeCallout:
		a = &CalloutAnnotation{}
	default:
		return nil, fmt.Errorf("unknown annotation type %q", t)
	}
	a.Base().Subtype = t
	return a, nil
}

// Validate checks the structural invariants of a record; page bounds against
// the open document are checked by the caller.
func Validate(a Annotation) error {
	if a == nil {
		return errors.New("nil annotation")
	}
	b := a.Base()
	if b.ID == "" {
		return errors.New("annotation id missing")
	}
	if !b.Subtype.Valid() {
		return fmt.Errorf("unknown annotation type %q", b.Subtype)
	}
	if b.Page < 1 {
		return fmt.Errorf("annotation %s: page %d out of range", b.ID, b.Page)
	}
	switch v := a.(type) {
	case *TextAnnotation:
		if v.Text == "" {
			return fmt.Errorf("annotation %s: empty text", b.ID)
		}
	case *ShapeAnnotation:
		switch v.ShapeType {
		case ShapeRectangle, ShapeCircle, ShapeArrow:
		default:
			return fmt.Errorf("annotation %s: unknown shape %q", b.ID, v.ShapeType)
		}
	case *FormAnnotation:
		switch v.FormType {
		case FormCheckbox, FormRadio, FormTextField, FormDate:
		default:
			return fmt.Errorf("annotation %s: unknown form type %q", b.ID, v.FormType)
		}
	case *ImageAnnotation:
		if len(v.Image) == 0 {
			return fmt.Errorf("annotation %s: image payload missing", b.ID)
		}
	}
	return nil
}
