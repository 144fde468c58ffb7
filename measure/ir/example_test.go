package ir_test

import (
	"fmt"

	"github.com/cwbudde/algo-reflect/measure/ir"
)

func ExampleAnalyzer_Analyze() {
	r, err := ir.New(
		[]float64{0.010, 0.030, 0.070, 0.120},
		[]float64{1.0, 0.5, 0.5, 0.25},
	)
	if err != nil {
		panic(err)
	}

	metrics, err := ir.NewAnalyzer(1000).Analyze(r)
	if err != nil {
		panic(err)
	}

	fmt.Printf("taps=%d energy=%.4f\n", metrics.Taps, metrics.Energy)
	fmt.Printf("first=%.3f s D50=%.3f\n", metrics.FirstArrival, metrics.D50)

	// Output:
	// taps=4 energy=1.5625
	// first=0.010 s D50=0.800
}

func ExampleImpulseResponse_Render() {
	r, _ := ir.New([]float64{0, 0.002, 0.002}, []float64{1, 0.5, 0.25})

	kernel, err := r.Render(1000)
	if err != nil {
		panic(err)
	}
	fmt.Println(kernel)

	// Output:
	// [1 0 0.75]
}
