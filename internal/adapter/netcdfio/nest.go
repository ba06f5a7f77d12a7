package netcdfio

import (
	"math"
	"reflect"
)

// nestFloat32 reshapes a flat float64 slice into the nested []float32 form
// the CDF writer expects, converting NaN holes to the fill value.
func nestFloat32(vals []float64, shape []int, fill float32) interface{} {
	return nestInto(vals, shape, fill).Interface()
}

func float32Type(ndim int) reflect.Type {
	t := reflect.TypeOf(float32(0))
	for i := 0; i < ndim; i++ {
		t = reflect.SliceOf(t)
	}
	return t
}

func nestInto(vals []float64, shape []int, fill float32) reflect.Value {
	if len(shape) == 1 {
		out := make([]float32, shape[0])
		for i, v := range vals {
			if math.IsNaN(v) {
				out[i] = fill
			} else {
				out[i] = float32(v)
			}
		}
		return reflect.ValueOf(out)
	}
	chunk := 1
	for _, s := range shape[1:] {
		chunk *= s
	}
	out := reflect.MakeSlice(float32Type(len(shape)), shape[0], shape[0])
	for i := 0; i < shape[0]; i++ {
		out.Index(i).Set(nestInto(vals[i*chunk:(i+1)*chunk], shape[1:], fill))
	}
	return out
}

// flatten walks arbitrarily nested numeric slices depth first and returns
// the values as float64, mapping the fill value to NaN.
func flatten(v interface{}, fill float64) []float64 {
	var out []float64
	walk(reflect.ValueOf(v), fill, &out)
	return out
}

func walk(v reflect.Value, fill float64, out *[]float64) {
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		for i := 0; i < v.Len(); i++ {
			walk(v.Index(i), fill, out)
		}
		return
	}
	f := v.Convert(reflect.TypeOf(float64(0))).Float()
	if fill != 0 && f == fill {
		f = math.NaN()
	}
	*out = append(*out, f)
}

// shapeOf reports the dimensions of nested slice data.
func shapeOf(v interface{}) []int {
	var shape []int
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		shape = append(shape, rv.Len())
		if rv.Len() == 0 {
			break
		}
		rv = rv.Index(0)
	}
	return shape
}
