package kube

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

// Mutation adjusts a decoded manifest object before it is applied.
// Fixtures use mutations to pin manifests to the environment under test,
// for example setting spec.gatewayNode to a live worker hostname.
type Mutation func(obj *unstructured.Unstructured) error

// LoadManifest reads a multi-document YAML file and decodes every
// non-empty document into an unstructured object, applying the given
// mutations to each in order.
func LoadManifest(path string, mutations ...Mutation) ([]*unstructured.Unstructured, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	objs, err := DecodeManifest(data, mutations...)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filepath.Base(path), err)
	}
	return objs, nil
}

// DecodeManifest decodes multi-document YAML into unstructured objects.
func DecodeManifest(data []byte, mutations ...Mutation) ([]*unstructured.Unstructured, error) {
	var objs []*unstructured.Unstructured
	for i, doc := range splitDocuments(data) {
		var content map[string]interface{}
		if err := yaml.Unmarshal(doc, &content); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if len(content) == 0 {
			continue
		}
		obj := &unstructured.Unstructured{Object: content}
		if obj.GetKind() == "" || obj.GetAPIVersion() == "" {
			return nil, fmt.Errorf("document %d: missing kind or apiVersion", i)
		}
		for _, mutate := range mutations {
			if err := mutate(obj); err != nil {
				return nil, fmt.Errorf("document %d (%s/%s): mutation failed: %w",
					i, obj.GetKind(), obj.GetName(), err)
			}
		}
		objs = append(objs, obj)
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("no objects found in manifest")
	}
	return objs, nil
}

// splitDocuments splits YAML data on "---" separator lines. A scanner is
// used instead of a plain string split so separators inside block scalars
// are left alone.
func splitDocuments(data []byte) [][]byte {
	var docs [][]byte
	var current bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimRight(line, " \t") == "---" {
			if current.Len() > 0 {
				docs = append(docs, append([]byte(nil), current.Bytes()...))
				current.Reset()
			}
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if current.Len() > 0 {
		docs = append(docs, current.Bytes())
	}
	return docs
}

// SetNamespace returns a mutation forcing every namespaced object into
// the given namespace. Cluster-scoped objects are left untouched by the
// API server, so applying it unconditionally is safe.
func SetNamespace(namespace string) Mutation {
	return func(obj *unstructured.Unstructured) error {
		if obj.GetNamespace() != "" || namespacedKind(obj.GetKind()) {
			obj.SetNamespace(namespace)
		}
		return nil
	}
}

func namespacedKind(kind string) bool {
	switch kind {
	case "Pod", "Deployment", "DaemonSet", "StatefulSet", "Service",
		"ConfigMap", "Secret", "NetworkPolicy", "ServiceAccount", "Job":
		return true
	}
	return false
}

// SetField returns a mutation setting a nested spec field on objects of
// the given kind. The path is relative to the object root, for example
// "spec", "gatewayNode".
func SetField(kind string, value interface{}, path ...string) Mutation {
	return func(obj *unstructured.Unstructured) error {
		if obj.GetKind() != kind {
			return nil
		}
		if err := unstructured.SetNestedField(obj.Object, value, path...); err != nil {
			return fmt.Errorf("failed to set %s: %w", strings.Join(path, "."), err)
		}
		return nil
	}
}

// SetAnnotations returns a mutation merging the given annotations onto
// objects of the given kind.
func SetAnnotations(kind string, annotations map[string]string) Mutation {
	return func(obj *unstructured.Unstructured) error {
		if obj.GetKind() != kind {
			return nil
		}
		merged := obj.GetAnnotations()
		if merged == nil {
			merged = make(map[string]string, len(annotations))
		}
		for k, v := range annotations {
			merged[k] = v
		}
		obj.SetAnnotations(merged)
		return nil
	}
}
