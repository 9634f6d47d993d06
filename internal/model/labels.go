package model

// ClassLabel is the diagnosis a classifier index stands for.
type ClassLabel int

const (
	Normal ClassLabel = iota
	ViralPneumonia
	Covid
)

// UnknownLabel is shown for any index outside the known labels.
const UnknownLabel = "Unknown"

const unknownColor = "white"

var labelNames = [...]string{
	Normal:         "Normal",
	ViralPneumonia: "Viral Pneumonia",
	Covid:          "Covid",
}

var labelColors = [...]string{
	Normal:         "green",
	ViralPneumonia: "orange",
	Covid:          "red",
}

func (l ClassLabel) Valid() bool {
	return l >= 0 && int(l) < len(labelNames)
}

func (l ClassLabel) String() string {
	if !l.Valid() {
		return UnknownLabel
	}
	return labelNames[l]
}

func (l ClassLabel) Color() string {
	if !l.Valid() {
		return unknownColor
	}
	return labelColors[l]
}

// LabelFor reports the label for a classifier index.
func LabelFor(index int64) (ClassLabel, bool) {
	l := ClassLabel(index)
	if index < 0 || index >= int64(len(labelNames)) {
		return l, false
	}
	return l, true
}

func LabelName(index int64) string {
	l, ok := LabelFor(index)
	if !ok {
		return UnknownLabel
	}
	return l.String()
}

func LabelColor(index int64) string {
	l, ok := LabelFor(index)
	if !ok {
		return unknownColor
	}
	return l.Color()
}

// Labels returns every known label in index order.
func Labels() []ClassLabel {
	out := make([]ClassLabel, len(labelNames))
	for i := range labelNames {
		out[i] = ClassLabel(i)
	}
	return out
}
