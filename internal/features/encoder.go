package features

// Encoder maps categorical context values to integer codes. The vocabulary
// is derived from the training corpus once and applied identically at
// inference; values unseen during training encode as -1.
type Encoder struct {
	products   map[string]int
	categories map[string]int
	uoms       map[string]int
	salesTypes map[string]int
}

// NumericWidth is the number of numeric columns in an encoded vector:
// 3 lags, 2 rolling means, rolling std, month sin/cos.
const NumericWidth = 8

// VectorWidth is the full encoded vector width including the four
// categorical codes.
const VectorWidth = NumericWidth + 4

// FitEncoder builds the categorical vocabularies from training rows.
// Codes are assigned in first-seen order, which is deterministic because
// training rows arrive in series order.
func FitEncoder(rows []*Row) *Encoder {
	e := &Encoder{
		products:   make(map[string]int),
		categories: make(map[string]int),
		uoms:       make(map[string]int),
		salesTypes: make(map[string]int),
	}
	for _, r := range rows {
		intern(e.products, r.ProductName)
		intern(e.categories, r.Category)
		intern(e.uoms, r.UOM)
		intern(e.salesTypes, r.SalesType)
	}
	return e
}

func intern(vocab map[string]int, v string) {
	if _, ok := vocab[v]; !ok {
		vocab[v] = len(vocab)
	}
}

func code(vocab map[string]int, v string) float64 {
	if c, ok := vocab[v]; ok {
		return float64(c)
	}
	return -1
}

// Encode flattens a feature row into the numeric vector consumed by the
// regressor.
func (e *Encoder) Encode(r *Row) []float64 {
	v := make([]float64, 0, VectorWidth)
	v = append(v, r.Lags[0], r.Lags[1], r.Lags[2])
	v = append(v, r.RollMean[0], r.RollMean[1], r.RollStd)
	v = append(v, r.MonthSin, r.MonthCos)
	v = append(v,
		code(e.products, r.ProductName),
		code(e.categories, r.Category),
		code(e.uoms, r.UOM),
		code(e.salesTypes, r.SalesType),
	)
	return v
}

// VocabSizes reports the learned vocabulary sizes (products, categories,
// UOMs, sales types), mainly for logging.
func (e *Encoder) VocabSizes() (int, int, int, int) {
	return len(e.products), len(e.categories), len(e.uoms), len(e.salesTypes)
}
