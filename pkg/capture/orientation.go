package capture

// Standard EXIF orientation codes.
const (
	OrientationUndefined      = 0
	OrientationNormal         = 1
	OrientationFlipHorizontal = 2
	OrientationRotate180      = 3
	OrientationFlipVertical   = 4
	OrientationTranspose      = 5
	OrientationRotate90       = 6
	OrientationTransverse     = 7
	OrientationRotate270      = 8
)

// ExifOrientation maps a device-relative rotation quadrant and sensor
// mirroring to one of the eight standard EXIF orientation codes. A pure
// lookup: rotations outside the four quadrants yield Undefined.
func ExifOrientation(rotationDegrees int, mirrored bool) int {
	switch {
	case rotationDegrees == 0 && !mirrored:
		return OrientationNormal
	case rotationDegrees == 0 && mirrored:
		return OrientationFlipHorizontal
	case rotationDegrees == 90 && !mirrored:
		return OrientationRotate90
	case rotationDegrees == 90 && mirrored:
		return OrientationTranspose
	case rotationDegrees == 180 && !mirrored:
		return OrientationRotate180
	case rotationDegrees == 180 && mirrored:
		return OrientationFlipVertical
	case rotationDegrees == 270 && !mirrored:
		return OrientationRotate270
	case rotationDegrees == 270 && mirrored:
		return OrientationTransverse
	default:
		return OrientationUndefined
	}
}

// RelativeRotation computes the clockwise rotation to apply to the sensor
// image for a given display rotation, in degrees. Front-facing sensors
// compose in the opposite direction because the image is mirrored.
func RelativeRotation(sensorOrientation, displayRotation int, mirrored bool) int {
	if mirrored {
		return (sensorOrientation + displayRotation) % 360
	}
	return (sensorOrientation - displayRotation + 360) % 360
}
