/*
This package gives the resolution path a small k-v store for facts that
are slow to re-learn: which images the CDN already holds, and how often
each network and class is asked for.

The interface `Client` stands in for the k-v store (memcached in the
subpackage, or redis); `Counter` is the optional usage counter.
*/
package cache
