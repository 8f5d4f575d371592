// Package internaldefs holds the metric families, label values and histogram
// bounds shared by the Prometheus and OTel exporters, so both publish the
// same names.
package internaldefs
