package option

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDefaultRegistryModes ensures every installation mode is registered
// under its serialization name.
func TestDefaultRegistryModes(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()

	for _, name := range []string{
		"raw", "copy", "tarball", "flash", "imxkobs", "ubifs", "uboot-env", "zephyr",
	} {
		mode, err := registry.Mode(name)
		require.NoError(t, err)
		require.Equal(t, name, mode.Name)
	}

	_, err := registry.Mode("bootloader")
	require.Error(t, err)
}

// TestRegisterDuplicate ensures a mode name cannot be claimed twice.
func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	mode := NewMode("raw", nil, nil)
	require.NoError(t, registry.Register(mode))
	require.Error(t, registry.Register(mode))
}

// TestValidateValuesDefaults ensures absent options resolve to their
// declared defaults without mutating the input.
func TestValidateValuesDefaults(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()
	mode, err := registry.Mode("raw")
	require.NoError(t, err)

	proposed := Values{
		Filename: "payload.bin",
		Target:   "/dev/sda",
	}

	resolved, err := mode.ValidateValues(proposed)
	require.NoError(t, err)

	require.Equal(t, "device", resolved[TargetType])
	require.Equal(t, int64(131072), resolved[ChunkSize])
	require.Equal(t, int64(-1), resolved[Count])
	require.Equal(t, int64(0), resolved[Seek])
	require.Equal(t, int64(0), resolved[Skip])
	require.Equal(t, false, resolved[Truncate])

	// Input stays as given.
	require.Len(t, proposed, 2)
}

// TestValidateValuesUnknownOption ensures an undeclared option is
// rejected with the typed error.
func TestValidateValuesUnknownOption(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()
	mode, err := registry.Mode("raw")
	require.NoError(t, err)

	_, err = mode.ValidateValues(Values{
		Filename:   "payload.bin",
		Target:     "/dev/sda",
		TargetPath: "/boot",
	})
	require.Error(t, err)

	var unknown *UnknownOptionError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "raw", unknown.Mode)
	require.Equal(t, TargetPath, unknown.Option)
}

// TestValidateValuesRequired ensures missing required options fail after
// defaults are applied.
func TestValidateValuesRequired(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()
	mode, err := registry.Mode("copy")
	require.NoError(t, err)

	_, err = mode.ValidateValues(Values{
		Filename:   "rootfs.ext4",
		Target:     "/dev/sda1",
		Filesystem: "ext4",
	})

	var missing *MissingOptionError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, TargetPath, missing.Option)
}

// TestValidateValuesInvalid ensures validator rejections carry the option
// name and survive unwrapping.
func TestValidateValuesInvalid(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()
	mode, err := registry.Mode("copy")
	require.NoError(t, err)

	cases := []struct {
		name   string
		values Values
	}{
		{"relative target path", Values{
			Filename: "rootfs.ext4", Target: "/dev/sda1",
			TargetPath: "boot", Filesystem: "ext4",
		}},
		{"unsupported filesystem", Values{
			Filename: "rootfs.ext4", Target: "/dev/sda1",
			TargetPath: "/boot", Filesystem: "ntfs",
		}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := mode.ValidateValues(tc.values)

			var invalid *InvalidValueError
			require.ErrorAs(t, err, &invalid)
		})
	}
}

// TestIntValueNormalization ensures numeric options accept the types JSON
// decoding produces and reject fractional or undersized values.
func TestIntValueNormalization(t *testing.T) {
	t.Parallel()

	validate := intValue(0)

	got, err := validate(float64(4096))
	require.NoError(t, err)
	require.Equal(t, int64(4096), got)

	got, err = validate(int(7))
	require.NoError(t, err)
	require.Equal(t, int64(7), got)

	_, err = validate(float64(1.5))
	require.Error(t, err)

	_, err = validate(int64(-1))
	require.Error(t, err)
}

// TestInstallConditionVariants covers the cross-option check clearing
// fields that do not belong to the selected condition variant.
func TestInstallConditionVariants(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()
	mode, err := registry.Mode("raw")
	require.NoError(t, err)

	// "always" drops every pattern field.
	resolved, err := mode.ValidateValues(Values{
		Filename:         "payload.bin",
		Target:           "/dev/sda",
		InstallCondition: ConditionAlways,
		ConditionPattern: PatternLinuxKernel,
	})
	require.NoError(t, err)
	require.NotContains(t, resolved, ConditionPattern)

	// Known pattern backends drop the regexp window fields.
	resolved, err = mode.ValidateValues(Values{
		Filename:         "zImage",
		Target:           "/dev/sda",
		InstallCondition: ConditionVersionDiverges,
		ConditionPattern: PatternUBoot,
		ConditionSeek:    int64(128),
	})
	require.NoError(t, err)
	require.NotContains(t, resolved, ConditionSeek)

	// The regexp backend requires its expression and fills window defaults.
	_, err = mode.ValidateValues(Values{
		Filename:         "version.txt",
		Target:           "/dev/sda",
		InstallCondition: ConditionVersionDiverges,
		ConditionPattern: PatternRegexp,
	})

	var missing *MissingOptionError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, ConditionRegexp, missing.Option)

	resolved, err = mode.ValidateValues(Values{
		Filename:         "version.txt",
		Target:           "/dev/sda",
		InstallCondition: ConditionVersionDiverges,
		ConditionPattern: PatternRegexp,
		ConditionRegexp:  `v(\d+)`,
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), resolved[ConditionSeek])
	require.Equal(t, int64(-1), resolved[ConditionBufferSize])

	// Version-diverges without a backend is incomplete.
	_, err = mode.ValidateValues(Values{
		Filename:         "payload.bin",
		Target:           "/dev/sda",
		InstallCondition: ConditionVersionDiverges,
	})
	require.True(t, errors.As(err, &missing))
	require.Equal(t, ConditionPattern, missing.Option)
}

// TestModeCapabilities ensures the optional families land only where
// declared.
func TestModeCapabilities(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()

	raw, err := registry.Mode("raw")
	require.NoError(t, err)
	require.True(t, raw.AllowCompression)
	require.True(t, raw.AllowInstallCondition)

	tarball, err := registry.Mode("tarball")
	require.NoError(t, err)
	require.False(t, tarball.AllowCompression)
	require.False(t, tarball.AllowInstallCondition)

	ubifs, err := registry.Mode("ubifs")
	require.NoError(t, err)
	require.True(t, ubifs.AllowCompression)
	require.False(t, ubifs.AllowInstallCondition)
}
