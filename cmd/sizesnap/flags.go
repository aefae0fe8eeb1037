package main

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/filter"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addOutputFlags registers the flags that select and shape the output of a
// command printing chunk results.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "pretty", "output format ("+strings.Join(output.Available(), ", ")+")")
	cmd.Flags().String("template", "", "Go template for -o template")
	cmd.Flags().String("include", "", "only chunks matching these globs (comma-separated)")
	cmd.Flags().StringSlice("exclude", nil, "skip chunks matching these globs")
	cmd.Flags().String("sort", "name", "sort by: name, bundled, minified, gzipped, treeshaked")
	cmd.Flags().BoolP("reverse", "r", false, "reverse the sort order")
	cmd.Flags().IntP("limit", "l", 0, "show at most this many chunks (0=all)")
}

// bindOutputFlags binds the output flags of the command being run. Commands
// share flag names, so binding happens when the command runs rather than in
// init.
func bindOutputFlags(cmd *cobra.Command) {
	for _, name := range []string{"output", "template", "include", "exclude", "sort", "reverse", "limit"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

// buildFilter creates a filter.Filter from the CLI flags.
func buildFilter() (*filter.Filter, error) {
	var opts []filter.Option

	if limitVal := viper.GetInt("limit"); limitVal > 0 {
		opts = append(opts, filter.WithLimit(limitVal))
	}

	if includeStr := viper.GetString("include"); includeStr != "" {
		opts = append(opts, filter.WithInclude(parseCommaSeparated(includeStr)...))
	}

	if exclude := viper.GetStringSlice("exclude"); len(exclude) > 0 {
		opts = append(opts, filter.WithExclude(exclude...))
	}

	sortByStr := viper.GetString("sort")
	if sortByStr == "" {
		sortByStr = "name"
	}
	sortField, err := filter.ParseSortField(sortByStr)
	if err != nil {
		return nil, err
	}
	opts = append(opts, filter.WithSortBy(sortField))

	// Names read A-Z and sizes largest first; --reverse flips either.
	reverseVal := viper.GetBool("reverse")
	descending := !reverseVal
	if sortField == filter.SortName {
		descending = reverseVal
	}
	opts = append(opts, filter.WithSortDescending(descending))

	return filter.New(opts...)
}

// buildFormatter resolves the -o and --template flags.
func buildFormatter() (output.Formatter, error) {
	outFormat := viper.GetString("output")
	if outFormat == "" {
		outFormat = "pretty"
	}

	if outFormat == "template" {
		tmplStr := viper.GetString("template")
		if tmplStr == "" {
			return nil, fmt.Errorf("--template is required when using -o template")
		}
		return output.NewTemplateFormatter(tmplStr), nil
	}

	formatter, err := output.Get(outFormat)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", outFormat, output.Available())
	}
	return formatter, nil
}

// parseCommaSeparated splits a comma-separated string and trims whitespace.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
