// Package progressive builds a value from a stream of text elements
// whose final shape (scalar, vector, matrix or jagged rows) is only known
// once the stream ends.
package progressive

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rawbytedev/shapekit/internal/common"
	"github.com/rawbytedev/shapekit/pkg/convert"
	"github.com/rawbytedev/shapekit/pkg/errs"
	"github.com/rawbytedev/shapekit/pkg/heap"
	"github.com/rawbytedev/shapekit/pkg/leaf"
	"github.com/rawbytedev/shapekit/pkg/mempage"
)

type Options struct {
	// PageSize is the initial page size; 0 uses mempage.DefaultPageSize.
	PageSize uint32
	Heap     heap.Allocator
	// Registry supplies the text parsers; nil builds a default one.
	Registry *convert.Registry
	Logger   *zap.SugaredLogger
}

// Creator is single-owner: it must not be shared between goroutines.
type Creator struct {
	opts  Options
	log   *zap.SugaredLogger
	file  *mempage.PageFile
	parse convert.Parser

	lt         leaf.Type
	objectSize uint32
	isString   bool
	status     Status

	vectorSize    uint32
	matrixRowSize uint32
	currentSize   uint32
	elements      uint32
	// rows holds one length per row, and only in jagged states.
	rows *jaggedRows
}

type jaggedRows struct{ lengths []uint32 }

func NewCreator(opts Options) *Creator {
	if opts.Heap == nil {
		opts.Heap = heap.Default
	}
	if opts.Registry == nil {
		opts.Registry = convert.NewRegistry(convert.Options{})
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Creator{
		opts: opts,
		log:  opts.Logger,
		file: mempage.NewPageFile(opts.PageSize, opts.Heap, opts.Logger),
	}
}

// Reset drops any memory in use and returns to NotStarted.
func (c *Creator) Reset() {
	size := c.opts.PageSize
	if size == 0 {
		size = mempage.DefaultPageSize
	}
	c.file.Clean(size)
	c.parse = nil
	c.lt = leaf.Type{}
	c.objectSize, c.isString = 0, false
	c.status = NotStarted
	c.vectorSize, c.matrixRowSize, c.currentSize, c.elements = 0, 0, 0, 0
	c.rows = nil
}

func (c *Creator) Status() Status { return c.status }

// VectorSize is the length of the longest row.
func (c *Creator) VectorSize() uint32 { return c.vectorSize }

func (c *Creator) MatrixRowSize() uint32 { return c.matrixRowSize }

func (c *Creator) NumberOfElements() uint32 { return c.elements }

// RowLengths returns a copy of the per-row lengths of a jagged value,
// nil for any other state.
func (c *Creator) RowLengths() []uint32 {
	if c.rows == nil {
		return nil
	}
	return append([]uint32(nil), c.rows.lengths...)
}

func (c *Creator) fail(err error) error {
	c.log.Debugw("creator failed", "status", c.status, "leaf", c.lt, "err", err)
	c.status = Failed
	return err
}

// Start resets the creator and prepares it for elements of type lt,
// which must be a basic type or a character string.
func (c *Creator) Start(lt leaf.Type) error {
	c.Reset()
	c.lt = lt
	c.objectSize = lt.StorageSize()
	c.isString = lt.IsCharString()
	if c.objectSize == 0 {
		return c.fail(fmt.Errorf("%w: %s has no size", errs.ErrParameters, lt))
	}
	if !c.isString && !lt.IsBasicType() {
		return c.fail(fmt.Errorf("%w: %s is neither a basic type nor a string", errs.ErrParameters, lt))
	}
	if !c.isString {
		p, err := c.opts.Registry.Parser(lt)
		if err != nil {
			return c.fail(err)
		}
		c.parse = p
	}
	c.status = Started
	return nil
}

func (c *Creator) active() error {
	if c.status == NotStarted || c.status == Failed {
		return fmt.Errorf("%w: creator is %s", errs.ErrInternalState, c.status)
	}
	return nil
}

// AddElement converts text and appends it to the current row.
func (c *Creator) AddElement(text string) error {
	if err := c.active(); err != nil {
		return err
	}
	newRow := false
	switch c.status {
	case Started:
		c.status = Scalar
		c.vectorSize, c.matrixRowSize, c.currentSize = 1, 1, 1
	case Scalar:
		c.status = Vector
		c.vectorSize, c.currentSize = 2, 2
	case VectorEnd, MatrixRowEnd:
		c.status = MatrixRow
		c.currentSize = 1
		c.matrixRowSize++
		newRow = true
	case SparseMatrixRowEnd:
		c.status = SparseMatrixRow
		c.currentSize = 1
		c.matrixRowSize++
		newRow = true
	case Vector, MatrixRow, SparseMatrixRow:
		c.currentSize++
	default:
		return c.fail(fmt.Errorf("%w: element after %s", errs.ErrUnsupportedFeature, c.status))
	}

	if c.isString {
		if strings.IndexByte(text, 0) >= 0 {
			return c.fail(fmt.Errorf("%w: string element contains a zero byte", errs.ErrParameters))
		}
		p, err := c.file.WriteReserveAtomic(uint32(len(text)) + 1)
		if err != nil {
			return c.fail(err)
		}
		dst := common.Bytes(p, uint32(len(text))+1)
		copy(dst, text)
		dst[len(text)] = 0
	} else {
		if newRow {
			// a row that would not fit next to the last one starts a new page
			if err := c.file.CheckAndTrimPage(c.vectorSize * c.objectSize); err != nil {
				return c.fail(err)
			}
			if err := c.file.CheckAndNewPage(0); err != nil {
				return c.fail(err)
			}
		}
		p, err := c.file.WriteReserveExtended(c.objectSize)
		if err != nil {
			return c.fail(err)
		}
		if err := c.parse(text, p); err != nil {
			return c.fail(err)
		}
	}
	c.elements++
	return nil
}

// EndVector closes the current row. Closing a row with no elements after
// a finished row records an empty row.
func (c *Creator) EndVector() error {
	if err := c.active(); err != nil {
		return err
	}
	switch c.status {
	case Started:
		return c.fail(fmt.Errorf("%w: vector closed before any element", errs.ErrIllegalOperation))
	case Scalar, Vector:
		c.status = VectorEnd
		c.vectorSize = c.currentSize
	case VectorEnd, MatrixRowEnd, MatrixRow:
		if c.status != MatrixRow {
			c.matrixRowSize++
			c.currentSize = 0
		}
		if c.currentSize != c.vectorSize {
			c.status = SparseMatrixRowEnd
			c.rows = &jaggedRows{}
			for i := uint32(0); i+1 < c.matrixRowSize; i++ {
				c.rows.lengths = append(c.rows.lengths, c.vectorSize)
			}
			c.rows.lengths = append(c.rows.lengths, c.currentSize)
		} else {
			c.status = MatrixRowEnd
		}
		c.vectorSize = max(c.vectorSize, c.currentSize)
	case SparseMatrixRow, SparseMatrixRowEnd:
		if c.status == SparseMatrixRowEnd {
			c.matrixRowSize++
			c.currentSize = 0
		}
		c.rows.lengths = append(c.rows.lengths, c.currentSize)
		c.status = SparseMatrixRowEnd
	default:
		return c.fail(fmt.Errorf("%w: vector closed in state %s", errs.ErrIllegalOperation, c.status))
	}
	c.currentSize = 0
	return nil
}

// End finishes the value. Its shape is decided by the rows seen so far.
func (c *Creator) End() error {
	if err := c.active(); err != nil {
		return err
	}
	switch c.status {
	case Started:
		return c.fail(fmt.Errorf("%w: no element was added", errs.ErrNotCompleted))
	case Scalar:
		c.status = FinishedS
	case VectorEnd:
		c.status = FinishedV
	case MatrixRowEnd:
		c.status = FinishedM
	case SparseMatrixRowEnd:
		c.status = FinishedSM
	default:
		return c.fail(fmt.Errorf("%w: cannot end in state %s", errs.ErrInternalState, c.status))
	}
	return nil
}
