package loop

import (
	"fmt"
	"go/constant"
	"go/token"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

var ErrIdxNotInt = errors.New("index is not int")

// Induction is a simple induction variable: a φ-node of the loop header which
// enters the loop with a constant and is stepped by a constant in the loop.
type Induction struct {
	Var  *ssa.Phi
	Init int64 // Initial value.
	Step int64 // Step value, negative for decrements.
}

func (i *Induction) String() string {
	if i.Step < 0 {
		return fmt.Sprintf("%s = %d; %s = %s - %d", i.Var.Name(), i.Init, i.Var.Name(), i.Var.Name(), -i.Step)
	}
	return fmt.Sprintf("%s = %d; %s = %s + %d", i.Var.Name(), i.Init, i.Var.Name(), i.Var.Name(), i.Step)
}

// inductions returns the induction variables of the header of l.
func inductions(l *Loop) []*Induction {
	var inds []*Induction
	for _, instr := range l.Header.Instrs {
		phi, ok := instr.(*ssa.Phi)
		if !ok {
			break // φ-nodes come first.
		}
		if ind, ok := extractIndex(l, phi); ok {
			inds = append(inds, ind)
		}
	}
	return inds
}

// extractIndex takes a Phi of the loop header and works out the initial value
// and increment. Every edge from outside the loop must be the same constant,
// and every edge from inside the loop the same step of the φ-node itself.
func extractIndex(l *Loop, phi *ssa.Phi) (*Induction, bool) {
	if len(phi.Edges) != len(l.Header.Preds) {
		return nil, false // CFG changed without updating the φ-node.
	}
	ind := &Induction{Var: phi}
	var initOK, stepOK bool
	for i, edge := range phi.Edges {
		if !l.Contains(l.Header.Preds[i]) {
			c, ok := edge.(*ssa.Const)
			if !ok {
				return nil, false
			}
			val, err := getIntConst(c)
			if err != nil || (initOK && val != ind.Init) {
				return nil, false
			}
			ind.Init, initOK = val, true
			continue
		}
		step, ok := stepOf(phi, edge)
		if !ok || (stepOK && step != ind.Step) {
			return nil, false
		}
		ind.Step, stepOK = step, true
	}
	return ind, initOK && stepOK
}

// stepOf returns the constant step if v is phi + c or phi - c.
func stepOf(phi *ssa.Phi, v ssa.Value) (int64, bool) {
	binop, ok := v.(*ssa.BinOp)
	if !ok || binop.X != phi {
		return 0, false
	}
	y, ok := binop.Y.(*ssa.Const)
	if !ok {
		return 0, false
	}
	val, err := getIntConst(y)
	if err != nil {
		return 0, false
	}
	switch binop.Op {
	case token.ADD:
		return val, true
	case token.SUB:
		return -val, true
	}
	return 0, false
}

// getIntConst is a helper function to extract constant int value.
func getIntConst(c *ssa.Const) (int64, error) {
	if !c.IsNil() && c.Value.Kind() == constant.Int {
		return c.Int64(), nil
	}
	return 0, ErrIdxNotInt
}
