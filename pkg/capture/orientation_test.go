package capture

import "testing"

func TestExifOrientation(t *testing.T) {
	tests := []struct {
		rotation int
		mirrored bool
		want     int
	}{
		{0, false, OrientationNormal},
		{0, true, OrientationFlipHorizontal},
		{90, false, OrientationRotate90},
		{90, true, OrientationTranspose},
		{180, false, OrientationRotate180},
		{180, true, OrientationFlipVertical},
		{270, false, OrientationRotate270},
		{270, true, OrientationTransverse},
		{45, false, OrientationUndefined},
		{-90, true, OrientationUndefined},
	}
	for _, tt := range tests {
		if got := ExifOrientation(tt.rotation, tt.mirrored); got != tt.want {
			t.Errorf("ExifOrientation(%d, %v) = %d, want %d",
				tt.rotation, tt.mirrored, got, tt.want)
		}
	}
}

func TestRelativeRotation(t *testing.T) {
	tests := []struct {
		name              string
		sensorOrientation int
		displayRotation   int
		mirrored          bool
		want              int
	}{
		{"back portrait", 90, 0, false, 90},
		{"back landscape", 90, 90, false, 0},
		{"back reverse landscape", 90, 270, false, 180},
		{"front portrait", 270, 0, true, 270},
		{"front landscape", 270, 90, true, 0},
		{"external unrotated", 0, 0, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RelativeRotation(tt.sensorOrientation, tt.displayRotation, tt.mirrored)
			if got != tt.want {
				t.Errorf("RelativeRotation(%d, %d, %v) = %d, want %d",
					tt.sensorOrientation, tt.displayRotation, tt.mirrored, got, tt.want)
			}
		})
	}
}
