package siteimg

import (
	"fmt"
	"html/template"
	"math"
)

const (
	defaultOp     = "fill"
	defaultFormat = "auto"
)

// Funcs returns the template functions this package contributes, keyed the
// way page templates call them. Both take a named-argument map, which is
// decoded and validated once at this boundary into the typed options.
func (s *Site) Funcs() template.FuncMap {
	return template.FuncMap{
		"resize_image": func(args map[string]any) (ResizeResponse, error) {
			opts, err := resizeOptionsFromArgs(args)
			if err != nil {
				return ResizeResponse{}, err
			}
			return s.ResizeImage(opts)
		},
		"get_image_metadata": func(args map[string]any) (*ImageMeta, error) {
			opts, err := metadataOptionsFromArgs(args)
			if err != nil {
				return nil, err
			}
			return s.GetImageMetadata(opts)
		},
	}
}

func resizeOptionsFromArgs(args map[string]any) (ResizeOptions, error) {
	var opts ResizeOptions

	path, err := stringArg(args, "path", true)
	if err != nil {
		return opts, fmt.Errorf("resize_image requires a path argument with a string value: %w", err)
	}
	opts.Path = path

	if opts.Width, err = uintArg(args, "width"); err != nil {
		return opts, fmt.Errorf("resize_image: width must be a non-negative integer: %w", err)
	}
	if opts.Height, err = uintArg(args, "height"); err != nil {
		return opts, fmt.Errorf("resize_image: height must be a non-negative integer: %w", err)
	}
	if opts.Op, err = stringArg(args, "op", false); err != nil {
		return opts, fmt.Errorf("resize_image: op must be a string: %w", err)
	}
	if opts.Format, err = stringArg(args, "format", false); err != nil {
		return opts, fmt.Errorf("resize_image: format must be a string: %w", err)
	}

	if v, ok := args["quality"]; ok {
		q, err := uintValue(v)
		if err != nil {
			return opts, fmt.Errorf("resize_image: quality must be a number: %w", err)
		}
		if err := checkQuality(q, true); err != nil {
			return opts, err
		}
		opts.Quality = q
	}

	opts.setDefaults()
	return opts, nil
}

func metadataOptionsFromArgs(args map[string]any) (MetadataOptions, error) {
	var opts MetadataOptions

	path, err := stringArg(args, "path", true)
	if err != nil {
		return opts, fmt.Errorf("get_image_metadata requires a path argument with a string value: %w", err)
	}
	opts.Path = path

	if v, ok := args["allow_missing"]; ok {
		b, ok := v.(bool)
		if !ok {
			return opts, fmt.Errorf("get_image_metadata: allow_missing must be a boolean: %w", ErrInvalidArgumentType)
		}
		opts.AllowMissing = b
	}
	return opts, nil
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%s is required: %w", key, ErrMissingArgument)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrInvalidArgumentType
	}
	return s, nil
}

func uintArg(args map[string]any, key string) (uint32, error) {
	v, ok := args[key]
	if !ok {
		return 0, nil
	}
	return uintValue(v)
}

// uintValue accepts the integer shapes template engines produce, including
// the float64 that JSON-ish data models use for all numbers.
func uintValue(v any) (uint32, error) {
	switch n := v.(type) {
	case int:
		if n < 0 {
			return 0, ErrInvalidArgumentType
		}
		return uint32(n), nil
	case int64:
		if n < 0 || n > math.MaxUint32 {
			return 0, ErrInvalidArgumentType
		}
		return uint32(n), nil
	case uint:
		if uint64(n) > math.MaxUint32 {
			return 0, ErrInvalidArgumentType
		}
		return uint32(n), nil
	case uint32:
		return n, nil
	case uint64:
		if n > math.MaxUint32 {
			return 0, ErrInvalidArgumentType
		}
		return uint32(n), nil
	case float64:
		if n < 0 || n != math.Trunc(n) || n > math.MaxUint32 {
			return 0, ErrInvalidArgumentType
		}
		return uint32(n), nil
	default:
		return 0, ErrInvalidArgumentType
	}
}
