package verification

import (
	"fmt"
	"math/rand/v2"
)

// puzzle operand range and operators match the original challenge: two small
// operands, one of three operations. This is a liveness check, not a CAPTCHA.
const (
	operandMin = 1
	operandMax = 10
)

// generatePuzzle returns a rendered question and its expected integer answer.
func generatePuzzle(rng *rand.Rand) (question string, answer int) {
	a := operandMin + rng.IntN(operandMax-operandMin+1)
	b := operandMin + rng.IntN(operandMax-operandMin+1)

	switch rng.IntN(3) {
	case 0:
		return fmt.Sprintf("%d + %d", a, b), a + b
	case 1:
		return fmt.Sprintf("%d - %d", a, b), a - b
	default:
		return fmt.Sprintf("%d × %d", a, b), a * b
	}
}
