package utils

import "testing"

func TestFormatINR(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "₹0.00"},
		{100, "₹100.00"},
		{1000, "₹1,000.00"},
		{12345, "₹12,345.00"},
		{123456, "₹1,23,456.00"},
		{1234567, "₹12,34,567.00"},
		{12345678, "₹1,23,45,678.00"},
		{2847.50, "₹2,847.50"},
		{-1234.56, "-₹1,234.56"},
		{10000000, "₹1,00,00,000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatINR(tt.input)
			if result != tt.expected {
				t.Errorf("FormatINR(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatCrores(t *testing.T) {
	if got := FormatCrores(12345.678); got != "₹12,345.68 Cr" {
		t.Errorf("FormatCrores = %s", got)
	}
	if got := FormatCrores(-0.5); got != "-₹0.50 Cr" {
		t.Errorf("FormatCrores(-0.5) = %s", got)
	}
}

func TestFormatContracts(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1234567, "12,34,567"},
		{-1234567, "-12,34,567"},
		{1499.6, "1,500"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatContracts(tt.input); got != tt.expected {
				t.Errorf("FormatContracts(%f) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{2.45, "+2.45%"},
		{-1.23, "-1.23%"},
		{0.0, "+0.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatPct(tt.input)
			if result != tt.expected {
				t.Errorf("FormatPct(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}
