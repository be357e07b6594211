package dataset

// Partition names a split of the corpus.
type Partition string

const (
	Train      Partition = "train"
	Validation Partition = "validation"
	Test       Partition = "test"
)

// Partitions lists every partition in a stable order.
var Partitions = []Partition{Train, Validation, Test}

// Default split fractions.
const (
	DefaultValidationFrac = 0.15
	DefaultTestFrac       = 0.15
)

// Rand is the random source used by the dataset pipeline. *rand.Rand
// satisfies it.
type Rand interface {
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// PartitionFor maps a draw r in [0,1) to a partition: r below validFrac is
// validation, r below validFrac+testFrac is test, everything else is train.
func PartitionFor(r, validFrac, testFrac float64) Partition {
	switch {
	case r < validFrac:
		return Validation
	case r < validFrac+testFrac:
		return Test
	default:
		return Train
	}
}

// Assigner draws one partition per sample.
type Assigner struct {
	ValidationFrac float64
	TestFrac       float64

	rand interface{ Float64() float64 }
}

// NewAssigner returns an assigner with the default 15/15/70 split.
func NewAssigner(rnd interface{ Float64() float64 }) *Assigner {
	return &Assigner{
		ValidationFrac: DefaultValidationFrac,
		TestFrac:       DefaultTestFrac,
		rand:           rnd,
	}
}

// Assign consumes one draw and returns its partition.
func (a *Assigner) Assign() Partition {
	return PartitionFor(a.rand.Float64(), a.ValidationFrac, a.TestFrac)
}
