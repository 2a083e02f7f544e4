package idgen_test

import (
	"testing"

	"github.com/vladislavdragonenkov/orderflow/internal/idgen"
)

func TestNewOrderIDUnique(t *testing.T) {
	gen := idgen.New()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := string(gen.NewOrderID())
		if id == "" {
			t.Fatal("generated empty order id")
		}
		if seen[id] {
			t.Fatalf("duplicate order id generated: %s", id)
		}
		seen[id] = true
	}
}
